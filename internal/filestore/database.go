package filestore

import (
	"context"

	"filestore/internal/model"
)

// Database is the Metadata Store: the only durable, transactional ground truth.
// Lookups return (nil, nil) when nothing matches.
type Database interface {
	// User operations

	// CreateUser inserts a new user. Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, user *model.User) error

	// FindUserByUsername returns the user with the given username.
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)

	// FindUserByID returns the user with the given id.
	FindUserByID(ctx context.Context, id string) (*model.User, error)

	// Directory operations

	// FindDirectoryByPath returns a directory with an exact path match.
	FindDirectoryByPath(ctx context.Context, path string) (*model.Directory, error)

	// FindDirectoryByID returns the directory with the given id.
	FindDirectoryByID(ctx context.Context, id string) (*model.Directory, error)

	// CreateDirectory inserts dir unless a row with the same path exists.
	// It returns the stored row and whether this call inserted it.
	CreateDirectory(ctx context.Context, dir *model.Directory) (*model.Directory, bool, error)

	// File operations

	// FindFileByPath returns the file stored at path.
	FindFileByPath(ctx context.Context, path string) (*model.File, error)

	// FindFileByID returns the file with the given id.
	FindFileByID(ctx context.Context, id string) (*model.File, error)

	// FindFilesByOwner returns every file owned by userID, ordered by path.
	FindFilesByOwner(ctx context.Context, userID string) ([]*model.File, error)

	// SaveFile inserts file, or when a row already exists at file.Path refreshes
	// its size and modification time while keeping id, owner and creation time.
	// beforeCommit runs inside the transaction with the stored row; if it
	// returns an error the transaction is rolled back. Work done by
	// beforeCommit is not undone when the commit itself fails; callers
	// must reverse it on any returned error.
	SaveFile(ctx context.Context, file *model.File, beforeCommit func(*model.File) error) (*model.File, bool, error)

	// Ping checks that the store answers.
	Ping(ctx context.Context) error

	// BackupTo writes a consistent copy of the store to path.
	BackupTo(path string) error

	// CheckMigrations returns an error if the schema is not up to date.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
