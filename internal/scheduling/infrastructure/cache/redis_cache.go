// Package cache memoizes schedule results behind Redis, keyed by a hash of
// the input payload, so idempotent re-POSTs of the same request skip
// re-solving (SPEC_FULL.md section 2).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiftsat/engine/internal/scheduling/application/commands"
	"github.com/shiftsat/engine/internal/scheduling/domain"
)

const keyPrefix = "shiftsat:schedule-result:"

// ResultCache implements commands.ResultCache with a Redis backend,
// mirroring the teacher's StorageAPIImpl namespaced-key convention.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache creates a cache that stores entries for ttl (0 disables
// expiration).
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

var _ commands.ResultCache = (*ResultCache)(nil)

// Get returns the cached result for key, if present.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.ScheduleResult, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result domain.ScheduleResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return &result, true, nil
}

// Set stores result under key.
func (c *ResultCache) Set(ctx context.Context, key string, result *domain.ScheduleResult) error {
	if key == "" {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for cache: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
