package inmemory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/room"
)

func TestRoomLifecycle(t *testing.T) {
	r := NewRepo(slog.Default())
	ctx := context.Background()

	require.NoError(t, r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "lobby", HostId: "a", Snapshot: domain.NewSnapshot(5)}))
	require.ErrorIs(t, r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "lobby", HostId: "b"}), room.ErrRoomAlreadyExists)

	for _, id := range []string{"a", "b", "a", "c"} {
		require.NoError(t, r.AddMember(ctx, &room.AddMemberParams{RoomId: "lobby", MemberId: id}))
	}

	got, err := r.GetRoom(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.Members)
	assert.True(t, got.IsHost("a"))

	// returned rooms are copies
	got.Members[0] = "zzz"
	*got.HostId = "zzz"
	again, err := r.GetRoom(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Members[0])
	assert.True(t, again.IsHost("a"))

	require.NoError(t, r.RemoveMember(ctx, &room.RemoveMemberParams{RoomId: "lobby", MemberId: "b"}))
	require.ErrorIs(t, r.RemoveMember(ctx, &room.RemoveMemberParams{RoomId: "lobby", MemberId: "b"}), room.ErrMemberNotFound)

	ref := "movie"
	require.NoError(t, r.SetVideo(ctx, &room.SetVideoParams{RoomId: "lobby", VideoRef: &ref, Snapshot: domain.NewSnapshot(9)}))
	require.NoError(t, r.SetHost(ctx, &room.SetHostParams{RoomId: "lobby", HostId: nil}))

	got, err = r.GetRoom(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got.Members)
	assert.Nil(t, got.HostId)
	require.NotNil(t, got.VideoRef)
	assert.Equal(t, "movie", *got.VideoRef)
	assert.Equal(t, int64(9), got.Snapshot.UpdatedAtServerMs)

	require.NoError(t, r.RemoveRoom(ctx, "lobby"))
	_, err = r.GetRoom(ctx, "lobby")
	require.ErrorIs(t, err, room.ErrRoomNotFound)
	require.ErrorIs(t, r.SetSnapshot(ctx, &room.SetSnapshotParams{RoomId: "lobby"}), room.ErrRoomNotFound)
}
