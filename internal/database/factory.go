package database

import (
	"fmt"
	"os"
	"path/filepath"

	"filestore/internal/config"
	"filestore/internal/filestore"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// The memory type is migrated on open since it starts empty every time.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (filestore.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, "filestore.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
