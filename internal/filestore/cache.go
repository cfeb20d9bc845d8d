package filestore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"filestore/internal/codec"
)

// Cache is a key-value store with per-entry expiry.
// Get reports found=false for missing or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// CacheTTL holds the expiry used for each family of cached values.
type CacheTTL struct {
	Listing    time.Duration
	Resolution time.Duration
}

// DefaultCacheTTL returns 30s for listings and one hour for resolutions.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{Listing: 30 * time.Second, Resolution: time.Hour}
}

// CacheLayer is a read-through accelerator in front of the Metadata Store.
// It never fails a request: backend and codec errors are logged and treated
// as misses.
type CacheLayer struct {
	backend Cache
	ttl     CacheTTL
	logger  Logger
	metrics Metrics

	// epoch counts invalidations. A fill computed before an invalidation
	// must not be stored after it; mu orders the two.
	mu    sync.RWMutex
	epoch atomic.Uint64
}

// NewCacheLayer wraps backend. A nil logger or metrics discards output.
func NewCacheLayer(backend Cache, ttl CacheTTL, logger Logger, metrics Metrics) *CacheLayer {
	if logger == nil {
		logger = NewNopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CacheLayer{backend: backend, ttl: ttl, logger: logger, metrics: metrics}
}

// TTL returns the configured expiries.
func (c *CacheLayer) TTL() CacheTTL { return c.ttl }

// Get decodes the value stored at key into v and reports whether it did.
func (c *CacheLayer) Get(ctx context.Context, key string, v any) bool {
	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.metrics.CacheLookup(CacheError)
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !found {
		c.metrics.CacheLookup(CacheMiss)
		return false
	}
	if err := codec.Unmarshal(data, v); err != nil {
		c.metrics.CacheLookup(CacheError)
		c.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}
	c.metrics.CacheLookup(CacheHit)
	return true
}

// Set encodes v and stores it at key for ttl.
func (c *CacheLayer) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := codec.Marshal(v)
	if err != nil {
		c.logger.Warn("cache entry unencodable", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops keys.
func (c *CacheLayer) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch.Add(1)
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

// Ping writes and reads back a probe entry. Unlike the other methods it
// returns backend errors.
func (c *CacheLayer) Ping(ctx context.Context) error {
	const probeKey = "ping_probe"
	if err := c.backend.Set(ctx, probeKey, []byte{1}, time.Second); err != nil {
		return fmt.Errorf("writing probe: %w", err)
	}
	if _, _, err := c.backend.Get(ctx, probeKey); err != nil {
		return fmt.Errorf("reading probe: %w", err)
	}
	return nil
}

// Close releases the backend.
func (c *CacheLayer) Close() error {
	return c.backend.Close()
}

// fill stores v at key unless an Invalidate ran after epoch was read.
func (c *CacheLayer) fill(ctx context.Context, key string, v any, ttl time.Duration, epoch uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.epoch.Load() != epoch {
		c.logger.Debug("cache fill dropped after invalidation", "key", key)
		return
	}
	c.Set(ctx, key, v, ttl)
}

// GetOrCompute returns the cached value at key, or calls compute and caches
// its result for ttl. compute reports found=false for an absent or empty
// result, which is returned but never stored. A result is also not stored
// when an invalidation happened while compute ran, since it may predate the
// write that caused it.
func GetOrCompute[T any](ctx context.Context, c *CacheLayer, key string, ttl time.Duration, compute func(context.Context) (T, bool, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	epoch := c.epoch.Load()
	value, found, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if found {
		c.fill(ctx, key, value, ttl, epoch)
	}
	return value, nil
}

func listingKey(userID string) string { return "files_list_for_" + userID }
func idKey(id string) string          { return "path_for_obj_id_" + id }
func pathKey(p string) string         { return "file_info_for_" + p }
