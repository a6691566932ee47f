package store

import (
	"context"
	"sync"
	"time"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

type cacheEntry struct {
	record    *models.Record
	expiresAt time.Time
}

// InMemoryCache is a process-local ResultCache with per-entry expiry.
// Expired entries are dropped lazily on read.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// CacheOption configures InMemoryCache.
type CacheOption func(*InMemoryCache)

// WithCacheClock overrides the clock used for expiry.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *InMemoryCache) { c.now = now }
}

func NewInMemoryCache(opts ...CacheOption) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryCache) Get(_ context.Context, digest string) (*models.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[digest]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, digest)
		return nil, sentinel.ErrNotFound
	}
	return entry.record, nil
}

// Set stores record under digest. A non-positive ttl stores nothing.
func (c *InMemoryCache) Set(_ context.Context, digest string, record *models.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[digest] = cacheEntry{record: record, expiresAt: c.now().Add(ttl)}
	return nil
}
