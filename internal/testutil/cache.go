package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheDown is returned by every FailingCache call.
var ErrCacheDown = errors.New("cache unavailable")

// FailingCache is a Cache whose every operation fails.
type FailingCache struct{}

func (FailingCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, ErrCacheDown }
func (FailingCache) Set(context.Context, string, []byte, time.Duration) error { return ErrCacheDown }
func (FailingCache) Delete(context.Context, ...string) error                  { return ErrCacheDown }
func (FailingCache) Close() error                                             { return nil }

// MapCache is an in-memory Cache that ignores expiry and records what it
// was asked to do. Safe for concurrent use.
type MapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	TTLs    map[string]time.Duration
	Deleted []string
}

func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string][]byte), TTLs: make(map[string]time.Duration)}
}

func (c *MapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *MapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.TTLs[key] = ttl
	return nil
}

func (c *MapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.Deleted = append(c.Deleted, keys...)
	return nil
}

func (c *MapCache) Close() error { return nil }

// Has reports whether key is currently stored.
func (c *MapCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
