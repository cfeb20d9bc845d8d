package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"filestore/internal/database/migrations"
	"filestore/internal/filestore"
	"filestore/internal/model"
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *queries
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:      db,
		queries: newQueries(db),
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: newQueries(db),
	}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
//
// The pool is limited to a single connection: an in-memory database exists
// per connection, and SQLite serializes writers anyway.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// User operations

func (s *SQLiteDatabase) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.queries.insertUser(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q exists", filestore.ErrConflict, user.Username)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.queries.getUserByUsername(ctx, username)
	return notFoundAsNil(u, err, "finding user by username")
}

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.queries.getUserByID(ctx, id)
	return notFoundAsNil(u, err, "finding user by id")
}

// Directory operations

func (s *SQLiteDatabase) FindDirectoryByPath(ctx context.Context, path string) (*model.Directory, error) {
	d, err := s.queries.getDirectoryByPath(ctx, path)
	return notFoundAsNil(d, err, "finding directory by path")
}

func (s *SQLiteDatabase) FindDirectoryByID(ctx context.Context, id string) (*model.Directory, error) {
	d, err := s.queries.getDirectoryByID(ctx, id)
	return notFoundAsNil(d, err, "finding directory by id")
}

// ListDirectories returns every directory row ordered by path.
func (s *SQLiteDatabase) ListDirectories(ctx context.Context) ([]*model.Directory, error) {
	dirs, err := s.queries.listDirectories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	return dirs, nil
}

// CreateDirectory inserts dir unless its path is already recorded. A caller
// that loses an insert race gets the winner's row back with inserted=false.
func (s *SQLiteDatabase) CreateDirectory(ctx context.Context, dir *model.Directory) (*model.Directory, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	inserted, err := qtx.insertDirectoryIfAbsent(ctx, dir)
	if err != nil {
		return nil, false, fmt.Errorf("inserting directory: %w", err)
	}

	stored, err := qtx.getDirectoryByPath(ctx, dir.Path)
	if err != nil {
		return nil, false, fmt.Errorf("reading directory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}
	return stored, inserted, nil
}

// File operations

func (s *SQLiteDatabase) FindFileByPath(ctx context.Context, path string) (*model.File, error) {
	f, err := s.queries.getFileByPath(ctx, path)
	return notFoundAsNil(f, err, "finding file by path")
}

func (s *SQLiteDatabase) FindFileByID(ctx context.Context, id string) (*model.File, error) {
	f, err := s.queries.getFileByID(ctx, id)
	return notFoundAsNil(f, err, "finding file by id")
}

func (s *SQLiteDatabase) FindFilesByOwner(ctx context.Context, userID string) ([]*model.File, error) {
	files, err := s.queries.getFilesByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("finding files by owner: %w", err)
	}
	return files, nil
}

// SaveFile upserts file by path. An existing row keeps its id, owner, name
// and creation time; only size and modification time change. If Commit
// fails after beforeCommit succeeded, the caller owns undoing its effects.
func (s *SQLiteDatabase) SaveFile(ctx context.Context, file *model.File, beforeCommit func(*model.File) error) (*model.File, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	stored, err := qtx.upsertFile(ctx, file)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, false, fmt.Errorf("%w: owner %s does not exist", filestore.ErrUnauthorized, file.UserID)
		}
		return nil, false, fmt.Errorf("upserting file: %w", err)
	}
	created := stored.ID == file.ID

	if beforeCommit != nil {
		if err := beforeCommit(stored); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}
	return stored, created, nil
}

// Ping checks the connection.
func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version against the embedded migrations.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// Migrate applies pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo writes a consistent copy of the database to destPath.
// destPath must not exist or must be an empty file.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func notFoundAsNil[T any](v *T, err error, doing string) (*T, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", doing, err)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// Compile-time check that SQLiteDatabase implements filestore.Database interface
var _ filestore.Database = (*SQLiteDatabase)(nil)
