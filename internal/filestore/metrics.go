package filestore

import "time"

// Cache lookup outcomes reported to Metrics.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics receives counters from the core. Implementations must be safe for
// concurrent use.
type Metrics interface {
	CacheLookup(result string)
	FileSaved(created bool, size int64)
	ArchiveBuilt(codec string, size int, took time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) CacheLookup(string)                      {}
func (NopMetrics) FileSaved(bool, int64)                   {}
func (NopMetrics) ArchiveBuilt(string, int, time.Duration) {}
