package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

func (r repo) addWithIncrement(ctx context.Context, key string, value any) error {
	return r.addWithIncrementSrc.Run(ctx, r.rc, []string{key}, value).Err()
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

// touch extends the room hash and its member list together so neither outlives the other.
func (r repo) touch(ctx context.Context, pipe redis.Pipeliner, roomId string) {
	pipe.Expire(ctx, r.getRoomKey(roomId), r.expireDuration)
	pipe.Expire(ctx, r.getMemberListKey(roomId), r.expireDuration)
}

func (r repo) exists(ctx context.Context, key string) (bool, error) {
	res, err := r.rc.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return res > 0, nil
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
