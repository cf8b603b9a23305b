package room

import (
	"context"

	"github.com/sharetube/syncwatch/internal/repository/room"
)

func (s service) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	return s.roomRepo.GetRoom(ctx, roomId)
}
