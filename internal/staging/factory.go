package staging

import (
	"filestore/internal/config"
	"filestore/internal/filestore"
)

// DefaultMaxSize is the default upload limit (1GiB).
const DefaultMaxSize int64 = 1 << 30

// NewStagingAreaFromConfig creates the StagingArea for the configured limit.
func NewStagingAreaFromConfig(cfg config.StagingConfig, fsmgr filestore.FilesystemManager) filestore.StagingArea {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return NewStagingArea(fsmgr, maxSize)
}
