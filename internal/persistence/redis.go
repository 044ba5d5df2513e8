package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/config"
)

// ErrRedisUnavailable is returned by Ping when no usable Redis is configured.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Redis owns the connection backing roster throttling and token revocation.
// Whether the server answered at startup decides which stores Stores hands out.
type Redis struct {
	client  *redis.Client
	cfg     config.RedisConfig
	logger  *zap.Logger
	healthy bool
}

// NewRedis connects using cfg and probes the server once. An empty address or an
// unreachable server is logged, not fatal.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Redis{cfg: cfg, logger: logger}
	if cfg.Addr == "" {
		logger.Info("redis disabled")
		return r
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.PingTimeout(),
		ReadTimeout: cfg.PingTimeout(),
	})
	if err := r.ping(ctx); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
		return r
	}
	r.healthy = true
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return r
}

// Available reports whether Redis answered when the connection was opened.
func (r *Redis) Available() bool {
	return r != nil && r.healthy
}

// Stores returns the attempt limiter and token denylist to run with: Redis
// backed when available, otherwise fallback for both.
func (r *Redis) Stores(fallback *cache.Memory) (cache.AttemptLimiter, cache.TokenDenylist) {
	if !r.Available() {
		if r != nil {
			r.logger.Warn("using in-process limiter and denylist; limits are per instance")
		}
		return fallback, fallback
	}
	return cache.NewAttemptLimiter(r.client), cache.NewTokenDenylist(r.client)
}

// Ping checks connectivity for readiness probes.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrRedisUnavailable
	}
	return r.ping(ctx)
}

func (r *Redis) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PingTimeout())
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.client != nil {
		_ = r.client.Close()
	}
}
