package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter — счётчики в Redis, общие для всех инстансов api.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

// NewRedisLimiter создаёт RedisLimiter с дневным лимитом.
func NewRedisLimiter(client *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		now:    time.Now,
	}
}

// Allow реализует Limiter. INCR и EXPIREAT выполняются одной транзакцией.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	counterKey, reset := dayWindow(key, l.now())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, counterKey)
		pipe.ExpireAt(ctx, counterKey, reset)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	return decide(incr.Val(), l.limit, reset), nil
}
