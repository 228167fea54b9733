package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared across instances. Each key is
// a counter that expires when its window ends.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "ratelimit:",
	}
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + key
}

// Allow counts the hit and reads the counter's TTL in one transaction. A
// counter without an expiry gets one here, so a window whose EXPIRE was lost
// still ends.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := l.key(key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}

	// -1 means the key exists without an expiry
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("set rate window: %w", err)
		}
	}

	return incr.Val() <= int64(limit), nil
}

func (l *RedisLimiter) Remaining(ctx context.Context, key string, limit int) (int, error) {
	count, err := l.client.Get(ctx, l.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rate counter: %w", err)
	}
	return max(limit-count, 0), nil
}

func (l *RedisLimiter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("read rate counter ttl: %w", err)
	}
	// Negative TTLs mean the key is missing or has no expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

var _ Limiter = (*RedisLimiter)(nil)
