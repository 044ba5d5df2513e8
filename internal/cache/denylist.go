package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked access token ids until they would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

// NewTokenDenylist returns a Redis-backed denylist. A nil client revokes nothing.
func NewTokenDenylist(client *redis.Client) TokenDenylist {
	return &redisDenylist{client: client, now: time.Now}
}

func (d *redisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if d.client == nil || tokenID == "" {
		return nil
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, "deny:"+tokenID, "1", ttl).Err()
}

func (d *redisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if d.client == nil || tokenID == "" {
		return false, nil
	}
	_, err := d.client.Get(ctx, "deny:"+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
