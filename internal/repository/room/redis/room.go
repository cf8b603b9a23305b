package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/room"
	omitnilpointers "github.com/sharetube/syncwatch/pkg/omit-nil-pointers"
)

type roomHash struct {
	RoomId            string  `redis:"room_id"`
	VideoRef          string  `redis:"video_ref"`
	HostId            string  `redis:"host_id"`
	IsPlaying         bool    `redis:"is_playing"`
	PositionSeconds   float64 `redis:"position_seconds"`
	UpdatedAtServerMs int64   `redis:"updated_at_server_ms"`
	Rate              float64 `redis:"rate"`
}

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func snapshotFields(s domain.PlaybackSnapshot) []any {
	return []any{
		"is_playing", s.IsPlaying,
		"position_seconds", s.PositionSeconds,
		"updated_at_server_ms", s.UpdatedAtServerMs,
		"rate", s.Rate,
	}
}

// setOptional writes non-nil values and deletes the fields whose value is nil.
func setOptional(ctx context.Context, pipe redis.Pipeliner, key string, fields map[string]any) {
	set, unset := omitnilpointers.Split(fields)
	if len(unset) > 0 {
		pipe.HDel(ctx, key, unset...)
	}

	if len(set) > 0 {
		pipe.HSet(ctx, key, set)
	}
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomId)

	created, err := r.rc.HSetNX(ctx, roomKey, "room_id", params.RoomId).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if !created {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, "host_id", params.HostId)
	pipe.HSet(ctx, roomKey, snapshotFields(params.Snapshot)...)
	r.touch(ctx, pipe, params.RoomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	roomKey := r.getRoomKey(roomId)

	var h roomHash
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&h); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	if h.RoomId == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	members, err := r.getMemberIds(ctx, roomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	pipe := r.rc.Pipeline()
	r.touch(ctx, pipe, roomId)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	return room.Room{
		RoomId:   h.RoomId,
		VideoRef: stringOrNil(h.VideoRef),
		HostId:   stringOrNil(h.HostId),
		Snapshot: domain.PlaybackSnapshot{
			IsPlaying:         h.IsPlaying,
			PositionSeconds:   h.PositionSeconds,
			UpdatedAtServerMs: h.UpdatedAtServerMs,
			Rate:              h.Rate,
		},
		Members: members,
	}, nil
}

func (r repo) SetVideo(ctx context.Context, params *room.SetVideoParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomId)

	exists, err := r.exists(ctx, roomKey)
	if err != nil {
		return err
	}

	if !exists {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	pipe := r.rc.TxPipeline()
	setOptional(ctx, pipe, roomKey, map[string]any{"video_ref": params.VideoRef})
	pipe.HSet(ctx, roomKey, snapshotFields(params.Snapshot)...)
	r.touch(ctx, pipe, params.RoomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set video: %w", err)
	}

	return nil
}

func (r repo) SetHost(ctx context.Context, params *room.SetHostParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomId)

	exists, err := r.exists(ctx, roomKey)
	if err != nil {
		return err
	}

	if !exists {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	pipe := r.rc.TxPipeline()
	setOptional(ctx, pipe, roomKey, map[string]any{"host_id": params.HostId})
	r.touch(ctx, pipe, params.RoomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set host: %w", err)
	}

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	res, err := r.rc.Del(ctx, r.getRoomKey(roomId), r.getMemberListKey(roomId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if res == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	return nil
}
