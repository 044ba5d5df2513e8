package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts events per key inside a fixed window.
type AttemptLimiter interface {
	// Allow registers one attempt and reports whether the key is still under limit.
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
	// Count reports attempts already registered in the current window without adding one.
	Count(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisLimiter struct {
	client *redis.Client
	prefix string
}

// NewAttemptLimiter returns a Redis fixed-window limiter. A nil client allows everything.
func NewAttemptLimiter(client *redis.Client) AttemptLimiter {
	return &redisLimiter{client: client, prefix: "rl:"}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if l.client == nil {
		return true, 0, nil
	}
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, l.prefix+key)
	pipe.ExpireNX(ctx, l.prefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (l *redisLimiter) Count(ctx context.Context, key string) (int64, error) {
	if l.client == nil {
		return 0, nil
	}
	n, err := l.client.Get(ctx, l.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	if l.client == nil {
		return nil
	}
	return l.client.Del(ctx, l.prefix+key).Err()
}
