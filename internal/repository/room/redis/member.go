package redis

import (
	"context"

	"github.com/sharetube/syncwatch/internal/repository/room"
)

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) getMemberIds(ctx context.Context, roomId string) ([]string, error) {
	return r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
}

func (r repo) AddMember(ctx context.Context, params *room.AddMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	exists, err := r.exists(ctx, r.getRoomKey(params.RoomId))
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if !exists {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	memberListKey := r.getMemberListKey(params.RoomId)
	if err := r.addWithIncrement(ctx, memberListKey, params.MemberId); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	pipe := r.rc.Pipeline()
	r.touch(ctx, pipe, params.RoomId)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	res, err := r.rc.ZRem(ctx, r.getMemberListKey(params.RoomId), params.MemberId).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if res == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.ErrMemberNotFound
	}

	return nil
}
