package database

import (
	"context"
	"database/sql"

	"filestore/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement the store runs.
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

func (q *queries) withTx(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Users

const insertUser = `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`

func (q *queries) insertUser(ctx context.Context, u *model.User) error {
	_, err := q.db.ExecContext(ctx, insertUser, u.ID, u.Username, u.PasswordHash, u.CreatedAt)
	return err
}

const userColumns = `id, username, password_hash, created_at`

const getUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

func (q *queries) getUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *queries) getUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Directories

const insertDirectoryIfAbsent = `INSERT INTO directories (id, path, created_at) VALUES (?, ?, ?)
ON CONFLICT(path) DO NOTHING`

func (q *queries) insertDirectoryIfAbsent(ctx context.Context, d *model.Directory) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertDirectoryIfAbsent, d.ID, d.Path, d.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const directoryColumns = `id, path, created_at`

const getDirectoryByPath = `SELECT ` + directoryColumns + ` FROM directories WHERE path = ?`

func (q *queries) getDirectoryByPath(ctx context.Context, path string) (*model.Directory, error) {
	return scanDirectory(q.db.QueryRowContext(ctx, getDirectoryByPath, path))
}

const getDirectoryByID = `SELECT ` + directoryColumns + ` FROM directories WHERE id = ?`

func (q *queries) getDirectoryByID(ctx context.Context, id string) (*model.Directory, error) {
	return scanDirectory(q.db.QueryRowContext(ctx, getDirectoryByID, id))
}

const listDirectories = `SELECT ` + directoryColumns + ` FROM directories ORDER BY path`

func (q *queries) listDirectories(ctx context.Context) ([]*model.Directory, error) {
	rows, err := q.db.QueryContext(ctx, listDirectories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []*model.Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

func scanDirectory(row rowScanner) (*model.Directory, error) {
	var d model.Directory
	if err := row.Scan(&d.ID, &d.Path, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// Files

const fileColumns = `id, user_id, name, path, size, is_downloadable, created_at, modified_at`

const upsertFile = `INSERT INTO files (` + fileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET size = excluded.size, modified_at = excluded.modified_at
RETURNING ` + fileColumns

func (q *queries) upsertFile(ctx context.Context, f *model.File) (*model.File, error) {
	return scanFile(q.db.QueryRowContext(ctx, upsertFile,
		f.ID, f.UserID, f.Name, f.Path, f.Size, f.Downloadable, f.CreatedAt, f.ModifiedAt))
}

const getFileByPath = `SELECT ` + fileColumns + ` FROM files WHERE path = ?`

func (q *queries) getFileByPath(ctx context.Context, path string) (*model.File, error) {
	return scanFile(q.db.QueryRowContext(ctx, getFileByPath, path))
}

const getFileByID = `SELECT ` + fileColumns + ` FROM files WHERE id = ?`

func (q *queries) getFileByID(ctx context.Context, id string) (*model.File, error) {
	return scanFile(q.db.QueryRowContext(ctx, getFileByID, id))
}

const getFilesByUserID = `SELECT ` + fileColumns + ` FROM files WHERE user_id = ? ORDER BY path`

func (q *queries) getFilesByUserID(ctx context.Context, userID string) ([]*model.File, error) {
	rows, err := q.db.QueryContext(ctx, getFilesByUserID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func scanFile(row rowScanner) (*model.File, error) {
	var f model.File
	err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.Path, &f.Size, &f.Downloadable, &f.CreatedAt, &f.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
