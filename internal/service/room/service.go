package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/room"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoomFull         = errors.New("room is full")
	ErrNotMember        = errors.New("not a member of the room")
	ErrInvalidIntent    = domain.ErrInvalidIntent
)

// RoomRepo is the room store, backed by redis or process memory.
type RoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	RemoveRoom(context.Context, string) error
	AddMember(context.Context, *room.AddMemberParams) error
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	SetSnapshot(context.Context, *room.SetSnapshotParams) error
	SetVideo(context.Context, *room.SetVideoParams) error
	SetHost(context.Context, *room.SetHostParams) error
}

// iSender delivers msg to every listed connection, preserving call order per connection.
type iSender interface {
	Send(ctx context.Context, ids []string, msg any) error
}

type iMetrics interface {
	RoomCreated()
	RoomRemoved()
	ObserveIntent(action, result string)
	HostChanged(reason string)
}

type Config struct {
	MembersLimit int
}

type service struct {
	roomRepo     RoomRepo
	sender       iSender
	metrics      iMetrics
	clock        clockwork.Clock
	locks        *keyedMutex
	membersLimit int
	logger       *slog.Logger
}

func NewService(roomRepo RoomRepo, sender iSender, metrics iMetrics, cfg *Config, clock clockwork.Clock, logger *slog.Logger) *service {
	return &service{
		roomRepo:     roomRepo,
		sender:       sender,
		metrics:      metrics,
		clock:        clock,
		locks:        newKeyedMutex(),
		membersLimit: cfg.MembersLimit,
		logger:       logger,
	}
}

// now returns the server time in ms, never earlier than the last stamp of prev.
func (s service) now(prev domain.PlaybackSnapshot) int64 {
	return max(s.clock.Now().UnixMilli(), prev.UpdatedAtServerMs)
}

func (s service) send(ctx context.Context, ids []string, msg *domain.Message) {
	if len(ids) == 0 {
		return
	}

	if err := s.sender.Send(ctx, ids, msg); err != nil {
		s.logger.InfoContext(ctx, "failed to send message", "type", msg.Type, "error", err)
	}
}

func roomStateMessage(r room.Room) *domain.Message {
	return domain.NewRoomStateMessage(domain.RoomStatePayload{
		VideoRef: r.VideoRef,
		HostId:   r.HostId,
		Snapshot: r.Snapshot,
	})
}

func without(ids []string, id string) []string {
	res := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			res = append(res, v)
		}
	}

	return res
}
