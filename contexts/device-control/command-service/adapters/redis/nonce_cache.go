package redisadapter

import (
	"context"
	"fmt"
	"time"

	"warden/contexts/device-control/command-service/ports"

	"github.com/redis/go-redis/v9"
)

// NonceCache remembers command nonces per device using SET NX with a
// TTL, so replay detection survives process restarts and is shared
// across verifier instances.
type NonceCache struct {
	client *redis.Client
	prefix string
}

func NewNonceCache(client *redis.Client) *NonceCache {
	return &NonceCache{
		client: client,
		prefix: "warden:command:nonce",
	}
}

func (c *NonceCache) Remember(ctx context.Context, deviceID string, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	key := fmt.Sprintf("%s:%s:%s", c.prefix, deviceID, nonce)
	fresh, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("remember nonce: %w", err)
	}
	return fresh, nil
}

var _ ports.NonceCache = (*NonceCache)(nil)
