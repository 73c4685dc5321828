package middleware

import (
	"context"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiterStore is a fixed-window rate limiter shared across server
// instances. Each key's window counter lives in Redis with a 1-second expiry,
// so all instances serving the same tenant enforce one combined limit.
type RedisLimiterStore struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiterStore builds a store admitting up to
// cfg.RequestsPerSecond + cfg.BurstSize requests per key per second.
func NewRedisLimiterStore(client *redis.Client, cfg RateLimitConfig) *RedisLimiterStore {
	limit := int64(math.Ceil(cfg.RequestsPerSecond)) + int64(cfg.BurstSize)
	if limit < 1 {
		limit = 1
	}
	return &RedisLimiterStore{
		client: client,
		limit:  limit,
		window: time.Second,
	}
}

func (s *RedisLimiterStore) Allow(key string) (bool, int) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		// Redis unavailable: fail open rather than reject traffic.
		return true, 0
	}
	if count == 1 {
		s.client.Expire(ctx, redisKey, s.window)
	}

	if count > s.limit {
		return false, 1
	}
	return true, 0
}
