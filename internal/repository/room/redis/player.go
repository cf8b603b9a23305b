package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/syncwatch/internal/repository/room"
)

func (r repo) SetSnapshot(ctx context.Context, params *room.SetSnapshotParams) error {
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
	pipe.HSet(ctx, roomKey, snapshotFields(params.Snapshot)...)
	r.touch(ctx, pipe, params.RoomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}
