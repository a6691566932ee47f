package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

const digestKeyPrefix = "docverify:digest:"

// RedisCache stores records as JSON keyed by image digest.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a Redis-backed result cache. The client lifecycle
// is managed by the caller.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, digest string) (*models.Record, error) {
	raw, err := c.client.Get(ctx, digestKeyPrefix+digest).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached verification: %w", err)
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode cached verification: %w", err)
	}
	return &record, nil
}

// Set stores record with SET EX. A non-positive ttl stores nothing.
func (c *RedisCache) Set(ctx context.Context, digest string, record *models.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode verification for cache: %w", err)
	}
	if err := c.client.Set(ctx, digestKeyPrefix+digest, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache verification: %w", err)
	}
	return nil
}
