// Package rediscache caches placement results in Redis, keyed by a
// digest of the canonical request. Identical requests served within the
// TTL skip the search entirely.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"qplace/internal/placement/models"
	"qplace/pkg/platform/sentinel"
)

const resultKeyPrefix = "placement:result:"

// Cache is a Redis-backed result cache.
type Cache struct {
	client *redis.Client
}

// New constructs a cache over an existing client. The client lifecycle is
// managed externally.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the cached result for the key, or sentinel.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) (*models.Result, error) {
	raw, err := c.client.Get(ctx, resultKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var result models.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Set stores the result under the key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, result *models.Result, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.client.Set(ctx, resultKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
