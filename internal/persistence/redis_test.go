package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/config"
)

func TestRedisDisabledFallsBack(t *testing.T) {
	ctx := context.Background()
	rdb := NewRedis(ctx, config.RedisConfig{}, nil)
	defer rdb.Close()

	if rdb.Available() {
		t.Fatal("empty address must not be available")
	}
	if err := rdb.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Ping = %v", err)
	}

	fallback := cache.NewMemory(nil)
	limiter, denylist := rdb.Stores(fallback)
	if limiter != cache.AttemptLimiter(fallback) || denylist != cache.TokenDenylist(fallback) {
		t.Fatal("disabled redis should hand out the fallback store")
	}
}

func TestRedisUnreachableFallsBack(t *testing.T) {
	ctx := context.Background()
	start := time.Now()
	rdb := NewRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1", PingTimeoutSec: 1}, nil)
	defer rdb.Close()

	if rdb.Available() {
		t.Fatal("unreachable server reported available")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("startup probe took %v", time.Since(start))
	}
	if err := rdb.Ping(ctx); err == nil {
		t.Fatal("Ping against an unreachable server should fail")
	}
	fallback := cache.NewMemory(nil)
	if limiter, _ := rdb.Stores(fallback); limiter != cache.AttemptLimiter(fallback) {
		t.Fatal("unreachable redis should hand out the fallback store")
	}
}

func TestNilRedisIsSafe(t *testing.T) {
	var rdb *Redis
	rdb.Close()
	if rdb.Available() {
		t.Fatal("nil redis available")
	}
	if err := rdb.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Ping = %v", err)
	}
	fallback := cache.NewMemory(nil)
	if _, denylist := rdb.Stores(fallback); denylist != cache.TokenDenylist(fallback) {
		t.Fatal("nil redis should hand out the fallback store")
	}
}

func TestRedisPingTimeoutDefault(t *testing.T) {
	if got := (config.RedisConfig{}).PingTimeout(); got != 2*time.Second {
		t.Errorf("default = %v", got)
	}
	if got := (config.RedisConfig{PingTimeoutSec: 5}).PingTimeout(); got != 5*time.Second {
		t.Errorf("configured = %v", got)
	}
}
