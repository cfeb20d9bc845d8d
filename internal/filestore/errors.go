package filestore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no File or Directory matches a token.
	ErrNotFound = errors.New("not found")

	// ErrNotDownloadable means the entry exists but may not be served.
	ErrNotDownloadable = errors.New("not downloadable")

	// ErrInvalidPath means a storage path is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrUnsupportedCodec means the requested archive codec is unknown.
	ErrUnsupportedCodec = errors.New("unsupported compression type")

	// ErrConflict means a unique name is already taken.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized means credentials or a token were rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPayloadTooLarge means an upload exceeded the staging limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidInput means a request field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// StorageIOError reports a failed filesystem read or write.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	var sioErr *StorageIOError
	if errors.As(err, &sioErr) {
		return err
	}
	return &StorageIOError{Op: op, Path: path, Err: err}
}

func invalidPath(p, reason string) error {
	return fmt.Errorf("%w: %q %s", ErrInvalidPath, p, reason)
}
