package cache

import (
	"fmt"

	"filestore/internal/config"
	"filestore/internal/filestore"
)

// NewCacheFromConfig creates a Cache backend from configuration.
func NewCacheFromConfig(cfg config.CacheConfig) (filestore.Cache, error) {
	switch cfg.Type {
	case "badger":
		c, err := NewBadgerCache(cfg.Dir, cfg.InMemory)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory":
		c, err := NewMemoryCache(cfg.MaxCost)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return NopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}

// TTLFromConfig converts the configured expiries.
func TTLFromConfig(cfg config.CacheConfig) filestore.CacheTTL {
	ttl := filestore.DefaultCacheTTL()
	if cfg.ListingTTL.Duration > 0 {
		ttl.Listing = cfg.ListingTTL.Duration
	}
	if cfg.ResolutionTTL.Duration > 0 {
		ttl.Resolution = cfg.ResolutionTTL.Duration
	}
	return ttl
}
