package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"filestore/internal/model"
)

// Materializer keeps on-disk directories and Directory rows in lockstep.
type Materializer struct {
	db     Database
	fsmgr  FilesystemManager
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewMaterializer creates a Materializer.
func NewMaterializer(db Database, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator) *Materializer {
	return &Materializer{db: db, fsmgr: fsmgr, logger: logger, clock: clock, idgen: idgen}
}

// EnsureRoot creates the storage root and its Directory row if either is missing.
func (m *Materializer) EnsureRoot(ctx context.Context) error {
	return m.ensureDirectory(ctx, Separator)
}

// EnsureDirectoryChain materializes every directory between the storage root
// and the parent of targetFilePath. Segments that already exist are left alone.
// Concurrent callers sharing a prefix all succeed and leave one row per segment.
func (m *Materializer) EnsureDirectoryChain(ctx context.Context, targetFilePath string) error {
	for _, dirPath := range ParentChain(targetFilePath) {
		if err := m.ensureDirectory(ctx, dirPath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) ensureDirectory(ctx context.Context, dirPath string) error {
	existing, err := m.db.FindDirectoryByPath(ctx, dirPath)
	if err != nil {
		return fmt.Errorf("checking directory %s: %w", dirPath, err)
	}

	created, err := m.fsmgr.Mkdir(dirPath)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return invalidPath(dirPath, "is occupied by a file")
		}
		return storageErr("mkdir", dirPath, err)
	}
	if existing != nil {
		if created {
			m.logger.Warn("recreated missing directory", "path", dirPath)
		}
		return nil
	}

	_, inserted, err := m.db.CreateDirectory(ctx, &model.Directory{
		ID:        m.idgen.New(),
		Path:      dirPath,
		CreatedAt: m.clock.Now(),
	})
	if err != nil {
		// Another writer may have recorded the path and be relying on the
		// directory, so it only goes when no row exists.
		row, findErr := m.db.FindDirectoryByPath(ctx, dirPath)
		if findErr == nil && row != nil {
			m.logger.Debug("directory recorded by another writer", "path", dirPath, "error", err)
			return nil
		}
		if created && findErr == nil {
			if rmErr := m.fsmgr.Remove(dirPath); rmErr != nil {
				m.logger.Error("removing directory after failed insert", "path", dirPath, "error", rmErr)
			}
		}
		return fmt.Errorf("recording directory %s: %w", dirPath, err)
	}
	if inserted {
		m.logger.Debug("directory materialized", "path", dirPath)
	}
	return nil
}
