package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"filestore/internal/filestore"
)

// MemoryCache is a process-local Cache bounded by total value size.
type MemoryCache struct {
	cache *ristretto.Cache[string, []byte]
}

var _ filestore.Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most maxCost bytes of values.
func NewMemoryCache(maxCost int64) (*MemoryCache, error) {
	if maxCost <= 0 {
		return nil, fmt.Errorf("max cost must be positive, got %d", maxCost)
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e6,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	value, found := c.cache.Get(key)
	return value, found, nil
}

// Set stores value and waits for the write buffer to drain, so a following
// Get observes it. Ristretto may still reject the entry under pressure.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	c.cache.Wait()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, key := range keys {
		c.cache.Del(key)
	}
	return nil
}

func (c *MemoryCache) Close() error {
	c.cache.Close()
	return nil
}
