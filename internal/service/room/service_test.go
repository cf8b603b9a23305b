package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/metrics"
	"github.com/sharetube/syncwatch/internal/repository/room"
	"github.com/sharetube/syncwatch/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/syncwatch/internal/repository/room/redis"
	"github.com/sharetube/syncwatch/pkg/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string
	msg *domain.Message
}

type fakeSender struct {
	mu  sync.Mutex
	out []sent
}

func (f *fakeSender) Send(_ context.Context, ids []string, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		f.out = append(f.out, sent{to: id, msg: msg.(*domain.Message)})
	}
	return nil
}

func (f *fakeSender) to(id string) []*domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	var res []*domain.Message
	for _, s := range f.out {
		if s.to == id {
			res = append(res, s.msg)
		}
	}
	return res
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.out = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo RoomRepo) (*service, *fakeSender, *clockwork.FakeClock) {
	t.Helper()

	sender := &fakeSender{}
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	collector := metrics.NewCollector(prometheus.NewRegistry())
	s := NewService(repo, sender, collector, &Config{MembersLimit: 3}, clock, discardLogger())

	return s, sender, clock
}

func newMemoryService(t *testing.T) (*service, *fakeSender, *clockwork.FakeClock) {
	return newTestService(t, inmemory.NewRepo(discardLogger()))
}

func join(t *testing.T, s *service, roomId, connId string) JoinRoomResponse {
	t.Helper()

	resp, err := s.JoinRoom(context.Background(), &JoinRoomParams{
		ConnectionId: connId,
		RoomId:       roomId,
		DisplayName:  connId,
	})
	require.NoError(t, err)
	return resp
}

func control(s *service, roomId, connId string, intent domain.ControlIntent) (domain.PlaybackSnapshot, error) {
	return s.ApplyControl(context.Background(), &ApplyControlParams{
		ConnectionId: connId,
		RoomId:       roomId,
		Intent:       intent,
	})
}

func TestJoinRoom_CreatesRoomWithJoinerAsHost(t *testing.T) {
	s, sender, clock := newMemoryService(t)

	resp := join(t, s, "r1", "a")
	assert.True(t, resp.Created)
	require.NotNil(t, resp.Room.HostId)
	assert.Equal(t, "a", *resp.Room.HostId)
	assert.Nil(t, resp.Room.VideoRef)
	assert.Equal(t, domain.NewSnapshot(clock.Now().UnixMilli()), resp.Room.Snapshot)

	msgs := sender.to("a")
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventRoomState, msgs[0].Type)
}

func TestJoinRoom_ExistingRoomKeepsSnapshot(t *testing.T) {
	s, sender, clock := newMemoryService(t)
	join(t, s, "r1", "a")

	clock.Advance(time.Second)
	played, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPlay, Position: optional.Of(12.5)})
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	sender.reset()
	resp := join(t, s, "r1", "b")
	assert.False(t, resp.Created)
	assert.Equal(t, played, resp.Room.Snapshot)
	assert.Equal(t, "a", *resp.Room.HostId)

	toB := sender.to("b")
	require.Len(t, toB, 1)
	assert.Equal(t, domain.EventRoomState, toB[0].Type)
	assert.Equal(t, played, toB[0].Payload.(domain.RoomStatePayload).Snapshot)

	toA := sender.to("a")
	require.Len(t, toA, 1)
	assert.Equal(t, domain.EventPeerJoin, toA[0].Type)
	assert.Equal(t, "b", toA[0].Payload.(domain.PeerJoinPayload).ConnectionId)
}

func TestJoinRoom_MembersLimit(t *testing.T) {
	s, _, _ := newMemoryService(t)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")
	join(t, s, "r1", "c")

	_, err := s.JoinRoom(context.Background(), &JoinRoomParams{ConnectionId: "d", RoomId: "r1"})
	assert.ErrorIs(t, err, ErrRoomFull)

	// rejoin of an existing member is not a new admission
	join(t, s, "r1", "c")
}

func TestApplyControl_NonHostIsIgnored(t *testing.T) {
	s, sender, _ := newMemoryService(t)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")
	before, err := s.GetRoom(context.Background(), "r1")
	require.NoError(t, err)

	sender.reset()
	_, err = control(s, "r1", "b", domain.ControlIntent{Action: domain.ActionPlay})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	after, err := s.GetRoom(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, before.Snapshot, after.Snapshot)
	assert.Empty(t, sender.to("a"))
	assert.Empty(t, sender.to("b"))
}

func TestApplyControl_UnknownRoom(t *testing.T) {
	s, _, _ := newMemoryService(t)

	_, err := control(s, "missing", "a", domain.ControlIntent{Action: domain.ActionPlay})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestApplyControl_BroadcastsSyncToEveryone(t *testing.T) {
	s, sender, _ := newMemoryService(t)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")

	sender.reset()
	next, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionSeek, Position: optional.Of(42.0)})
	require.NoError(t, err)
	assert.Equal(t, 42.0, next.PositionSeconds)

	for _, id := range []string{"a", "b"} {
		msgs := sender.to(id)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.EventSync, msgs[0].Type)
		assert.Equal(t, next, msgs[0].Payload)
	}
}

func TestApplyControl_SeekWithoutPositionKeepsPosition(t *testing.T) {
	s, sender, clock := newMemoryService(t)
	join(t, s, "r1", "a")

	paused, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPause, Position: optional.Of(17.5)})
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	sender.reset()
	next, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionSeek})
	require.NoError(t, err)
	assert.Equal(t, 17.5, next.PositionSeconds)
	assert.Greater(t, next.UpdatedAtServerMs, paused.UpdatedAtServerMs)

	msgs := sender.to("a")
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventSync, msgs[0].Type)
	assert.Equal(t, next, msgs[0].Payload)
}

func TestApplyControl_TimestampsAreMonotonic(t *testing.T) {
	s, _, clock := newMemoryService(t)
	join(t, s, "r1", "a")

	clock.Advance(10 * time.Second)
	first, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPlay})
	require.NoError(t, err)

	// wall clock steps backwards
	clock.Advance(-3 * time.Second)
	second, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPause})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.UpdatedAtServerMs, first.UpdatedAtServerMs)

	clock.Advance(5 * time.Second)
	third, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionRate, Rate: optional.Of(1.5)})
	require.NoError(t, err)
	assert.Greater(t, third.UpdatedAtServerMs, second.UpdatedAtServerMs)
	assert.Equal(t, 1.5, third.Rate)
}

func TestLoadVideo(t *testing.T) {
	s, sender, clock := newMemoryService(t)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")

	_, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPlay, Position: optional.Of(30.0)})
	require.NoError(t, err)

	_, err = s.LoadVideo(context.Background(), &LoadVideoParams{ConnectionId: "b", RoomId: "r1", VideoRef: "x"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	clock.Advance(time.Second)
	sender.reset()
	r, err := s.LoadVideo(context.Background(), &LoadVideoParams{
		ConnectionId: "a",
		RoomId:       "r1",
		VideoRef:     "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	require.NotNil(t, r.VideoRef)
	assert.Equal(t, "dQw4w9WgXcQ", *r.VideoRef)
	assert.Equal(t, domain.NewSnapshot(clock.Now().UnixMilli()), r.Snapshot)

	for _, id := range []string{"a", "b"} {
		msgs := sender.to(id)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.EventRoomState, msgs[0].Type)
	}
}

func TestDisconnect_HostMigratesToEarliestMember(t *testing.T) {
	s, sender, _ := newMemoryService(t)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")
	join(t, s, "r1", "c")

	sender.reset()
	resp, err := s.DisconnectMember(context.Background(), &DisconnectMemberParams{ConnectionId: "a", RoomId: "r1"})
	require.NoError(t, err)
	assert.True(t, resp.HostChanged)
	require.NotNil(t, resp.NewHostId)
	assert.Equal(t, "b", *resp.NewHostId)
	assert.False(t, resp.RoomRemoved)

	for _, id := range []string{"b", "c"} {
		msgs := sender.to(id)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.NewHostChangedMessage(resp.NewHostId), msgs[0])
	}

	_, err = control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPlay})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = control(s, "r1", "b", domain.ControlIntent{Action: domain.ActionPlay})
	assert.NoError(t, err)
}

func TestDisconnect_NonHostKeepsHost(t *testing.T) {
	s, sender, _ := newMemoryService(t)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")

	sender.reset()
	resp, err := s.DisconnectMember(context.Background(), &DisconnectMemberParams{ConnectionId: "b", RoomId: "r1"})
	require.NoError(t, err)
	assert.False(t, resp.HostChanged)
	assert.Empty(t, sender.to("a"))
}

func TestDisconnect_LastMemberRemovesRoom(t *testing.T) {
	s, _, _ := newMemoryService(t)
	join(t, s, "r1", "a")

	resp, err := s.DisconnectMember(context.Background(), &DisconnectMemberParams{ConnectionId: "a", RoomId: "r1"})
	require.NoError(t, err)
	assert.True(t, resp.RoomRemoved)
	assert.Nil(t, resp.NewHostId)

	_, err = s.GetRoom(context.Background(), "r1")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	// the next join recreates the room fresh
	assert.True(t, join(t, s, "r1", "b").Created)
}

func TestRequestHost(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepo(discardLogger())
	s, sender, _ := newTestService(t, repo)
	join(t, s, "r1", "a")
	join(t, s, "r1", "b")

	assert.ErrorIs(t, s.RequestHost(ctx, &RequestHostParams{ConnectionId: "b", RoomId: "r1"}), ErrPermissionDenied)
	assert.ErrorIs(t, s.RequestHost(ctx, &RequestHostParams{ConnectionId: "z", RoomId: "r1"}), ErrNotMember)
	assert.NoError(t, s.RequestHost(ctx, &RequestHostParams{ConnectionId: "a", RoomId: "r1"}))

	// host reference left dangling, e.g. by another instance sharing the store
	gone := "gone"
	require.NoError(t, repo.SetHost(ctx, &room.SetHostParams{RoomId: "r1", HostId: &gone}))

	sender.reset()
	require.NoError(t, s.RequestHost(ctx, &RequestHostParams{ConnectionId: "b", RoomId: "r1"}))
	for _, id := range []string{"a", "b"} {
		msgs := sender.to(id)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.EventHostChanged, msgs[0].Type)
		assert.Equal(t, "b", *msgs[0].Payload.(domain.HostChangedPayload).HostId)
	}
}

func TestJoinRoom_HostlessRoomIsClaimedByJoiner(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepo(discardLogger())
	s, sender, _ := newTestService(t, repo)
	join(t, s, "r1", "a")
	require.NoError(t, repo.SetHost(ctx, &room.SetHostParams{RoomId: "r1"}))

	sender.reset()
	resp := join(t, s, "r1", "b")
	require.NotNil(t, resp.Room.HostId)
	assert.Equal(t, "b", *resp.Room.HostId)

	toA := sender.to("a")
	require.Len(t, toA, 2)
	assert.Equal(t, domain.EventPeerJoin, toA[0].Type)
	assert.Equal(t, domain.EventHostChanged, toA[1].Type)
}

func TestServiceWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, _, _ := newTestService(t, roomRedis.NewRepo(rc, time.Hour, discardLogger()))
	ctx := context.Background()

	join(t, s, "r1", "a")
	join(t, s, "r1", "b")
	join(t, s, "r1", "c")

	_, err := control(s, "r1", "a", domain.ControlIntent{Action: domain.ActionPlay, Position: optional.Of(3.25)})
	require.NoError(t, err)

	resp, err := s.DisconnectMember(ctx, &DisconnectMemberParams{ConnectionId: "a", RoomId: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "b", *resp.NewHostId)

	r, err := s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, r.Members)
	assert.True(t, r.Snapshot.IsPlaying)
	assert.Equal(t, 3.25, r.Snapshot.PositionSeconds)

	for _, id := range []string{"b", "c"} {
		_, err := s.DisconnectMember(ctx, &DisconnectMemberParams{ConnectionId: id, RoomId: "r1"})
		require.NoError(t, err)
	}
	_, err = s.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("r1")
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, k.len())
}
