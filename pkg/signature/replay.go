package signature

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ReplayCache records request ids for the duration of the validity window.
// Seen marks the id and reports whether it had already been recorded. The
// cache is optional hardening: without one, two requests signed inside the
// same TTL window are indistinguishable from a replay.
type ReplayCache interface {
	Seen(ctx context.Context, requestID string) (bool, error)
}

// MemoryReplayCache is a single-process replay cache over an expirable LRU.
type MemoryReplayCache struct {
	cache *expirable.LRU[string, struct{}]
}

// NewMemoryReplayCache creates an in-memory replay cache. Entries expire after
// ttl; size bounds worst-case memory when traffic outruns expiry.
func NewMemoryReplayCache(size int, ttl time.Duration) *MemoryReplayCache {
	if size <= 0 {
		size = 65536
	}
	return &MemoryReplayCache{
		cache: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

// Seen implements ReplayCache.
func (c *MemoryReplayCache) Seen(_ context.Context, requestID string) (bool, error) {
	if _, ok := c.cache.Get(requestID); ok {
		return true, nil
	}
	c.cache.Add(requestID, struct{}{})
	return false, nil
}

// RedisReplayCache shares the seen-set across instances. Each request id is
// claimed atomically with SET NX so concurrent verifiers agree on the first
// claimant.
type RedisReplayCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisReplayCache creates a Redis-backed replay cache.
func NewRedisReplayCache(client *redis.Client, prefix string, ttl time.Duration) *RedisReplayCache {
	if prefix == "" {
		prefix = "sigreplay"
	}
	return &RedisReplayCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Seen implements ReplayCache.
func (c *RedisReplayCache) Seen(ctx context.Context, requestID string) (bool, error) {
	key := fmt.Sprintf("%s:%s", c.prefix, requestID)
	claimed, err := c.client.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay cache: %w", err)
	}
	return !claimed, nil
}
