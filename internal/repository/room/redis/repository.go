package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc                  *redis.Client
	addWithIncrementSrc *redis.Script
	expireDuration      time.Duration
	logger              *slog.Logger
}

// NewRepo returns a room store keeping one hash per room and a join-ordered sorted set of
// its members. Keys expire after expireDuration without access.
func NewRepo(rc *redis.Client, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc: rc,
		// score members by insertion order; re-adding keeps the original score
		addWithIncrementSrc: redis.NewScript(`
			local existing = redis.call('ZSCORE', KEYS[1], ARGV[1])
			if existing then
				return tonumber(existing)
			end
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`),
		expireDuration: expireDuration,
		logger:         logger,
	}
}
