package room

import (
	"context"

	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/room"
	"github.com/sharetube/syncwatch/pkg/videoref"
)

type LoadVideoParams struct {
	ConnectionId string
	RoomId       string
	VideoRef     string
}

// LoadVideo replaces the room video and resets playback. Host only.
func (s service) LoadVideo(ctx context.Context, params *LoadVideoParams) (room.Room, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return room.Room{}, err
	}

	if !r.IsHost(params.ConnectionId) || !r.IsMember(params.ConnectionId) {
		return room.Room{}, ErrPermissionDenied
	}

	r.VideoRef = videoref.Normalize(params.VideoRef)
	r.Snapshot = domain.NewSnapshot(s.now(r.Snapshot))
	if err := s.roomRepo.SetVideo(ctx, &room.SetVideoParams{
		RoomId:   params.RoomId,
		VideoRef: r.VideoRef,
		Snapshot: r.Snapshot,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set video", "error", err)
		return room.Room{}, err
	}

	s.send(ctx, r.Members, roomStateMessage(r))

	return r, nil
}

type ApplyControlParams struct {
	ConnectionId string
	RoomId       string
	Intent       domain.ControlIntent
}

// ApplyControl applies a host control intent and broadcasts the resulting snapshot.
// Intents from anyone but the current host are rejected with ErrPermissionDenied.
func (s service) ApplyControl(ctx context.Context, params *ApplyControlParams) (domain.PlaybackSnapshot, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	action := string(params.Intent.Action)
	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		s.metrics.ObserveIntent(action, "unknown_room")
		return domain.PlaybackSnapshot{}, err
	}

	if !r.IsHost(params.ConnectionId) || !r.IsMember(params.ConnectionId) {
		s.metrics.ObserveIntent(action, "denied")
		return domain.PlaybackSnapshot{}, ErrPermissionDenied
	}

	next, err := r.Snapshot.Apply(params.Intent, s.now(r.Snapshot))
	if err != nil {
		s.metrics.ObserveIntent(action, "invalid")
		return domain.PlaybackSnapshot{}, err
	}

	if err := s.roomRepo.SetSnapshot(ctx, &room.SetSnapshotParams{
		RoomId:   params.RoomId,
		Snapshot: next,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set snapshot", "error", err)
		return domain.PlaybackSnapshot{}, err
	}

	s.metrics.ObserveIntent(action, "applied")
	s.send(ctx, r.Members, domain.NewSyncMessage(next))

	return next, nil
}
