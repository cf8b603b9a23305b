package inmemory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/sharetube/syncwatch/internal/repository/room"
)

type repo struct {
	rooms  map[string]*room.Room
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]*room.Room),
		logger: logger,
	}
}

func copyRoom(r *room.Room) room.Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	if r.VideoRef != nil {
		v := *r.VideoRef
		c.VideoRef = &v
	}
	if r.HostId != nil {
		h := *r.HostId
		c.HostId = &h
	}

	return c
}

func (r *repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.DebugContext(ctx, "called", "params", params)
	if _, ok := r.rooms[params.RoomId]; ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	hostId := params.HostId
	r.rooms[params.RoomId] = &room.Room{
		RoomId:   params.RoomId,
		HostId:   &hostId,
		Snapshot: params.Snapshot,
	}

	return nil
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	return copyRoom(rm), nil
}

func (r *repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	if _, ok := r.rooms[roomId]; !ok {
		return room.ErrRoomNotFound
	}

	delete(r.rooms, roomId)
	return nil
}

func (r *repo) AddMember(ctx context.Context, params *room.AddMemberParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	if !slices.Contains(rm.Members, params.MemberId) {
		rm.Members = append(rm.Members, params.MemberId)
	}

	return nil
}

func (r *repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	i := slices.Index(rm.Members, params.MemberId)
	if i < 0 {
		return room.ErrMemberNotFound
	}

	rm.Members = slices.Delete(rm.Members, i, i+1)
	return nil
}

func (r *repo) SetSnapshot(ctx context.Context, params *room.SetSnapshotParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	rm.Snapshot = params.Snapshot
	return nil
}

func (r *repo) SetVideo(ctx context.Context, params *room.SetVideoParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	rm.VideoRef = nil
	if params.VideoRef != nil {
		v := *params.VideoRef
		rm.VideoRef = &v
	}
	rm.Snapshot = params.Snapshot
	return nil
}

func (r *repo) SetHost(ctx context.Context, params *room.SetHostParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	rm.HostId = nil
	if params.HostId != nil {
		h := *params.HostId
		rm.HostId = &h
	}
	return nil
}
