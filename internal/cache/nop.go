package cache

import (
	"context"
	"time"

	"filestore/internal/filestore"
)

// NopCache stores nothing. Every lookup misses.
type NopCache struct{}

var _ filestore.Cache = NopCache{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopCache) Delete(context.Context, ...string) error                  { return nil }
func (NopCache) Close() error                                             { return nil }
