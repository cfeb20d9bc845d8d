package filestore

import "io"

// StagingPrefix starts the name of every in-flight upload file.
const StagingPrefix = ".tmp-"

// StagingArea holds upload bytes until the metadata commit decides their fate.
type StagingArea interface {
	// Stage streams r into a temporary file inside the directory dirPath
	// (a storage path). Returns ErrPayloadTooLarge if r exceeds the limit.
	Stage(dirPath string, r io.Reader) (StagedUpload, error)
}

// StagedUpload is a fully written temporary file.
type StagedUpload interface {
	// Size returns the number of bytes staged.
	Size() int64

	// Commit atomically moves the staged bytes to storagePath.
	Commit(storagePath string) error

	// Revert undoes a Commit whose metadata did not persist, restoring the
	// bytes it replaced.
	Revert() error

	// Discard removes the staged bytes. Safe to call after Commit.
	Discard() error
}
