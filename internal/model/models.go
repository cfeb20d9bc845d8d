package model

import "time"

// User is an account that owns uploaded files.
type User struct {
	ID           string    `json:"id" cbor:"id"` // UUID
	Username     string    `json:"username" cbor:"username"`
	PasswordHash string    `json:"-" cbor:"-"` // PHC-encoded argon2id hash
	CreatedAt    time.Time `json:"created_at" cbor:"created_at"`
}

// Directory is a materialized node of the storage tree.
// Directories have no owner; Path is unique across the store.
type Directory struct {
	ID        string    `json:"id" cbor:"id"`     // UUID
	Path      string    `json:"path" cbor:"path"` // "/"-rooted storage path
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
}

// File is an uploaded file. Path is unique across all users.
type File struct {
	ID           string    `json:"id" cbor:"id"` // UUID
	UserID       string    `json:"user_id" cbor:"user_id"`
	Name         string    `json:"name" cbor:"name"` // base name shown to clients
	Path         string    `json:"path" cbor:"path"` // "/"-rooted storage path
	Size         int64     `json:"size" cbor:"size"`
	Downloadable bool      `json:"is_downloadable" cbor:"is_downloadable"`
	CreatedAt    time.Time `json:"created_at" cbor:"created_at"`
	ModifiedAt   time.Time `json:"modified_at" cbor:"modified_at"`
}
