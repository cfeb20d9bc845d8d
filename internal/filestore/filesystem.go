package filestore

import (
	"io"
	"io/fs"
)

// Path is a storage path that has been resolved on disk, with cached stat info.
// Paths are created by FilesystemManager.Resolve.
type Path struct {
	storagePath string
	diskPath    string
	info        fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(storagePath, diskPath string, info fs.FileInfo) *Path {
	return &Path{storagePath: storagePath, diskPath: diskPath, info: info}
}

// String returns the "/"-rooted storage path.
func (p *Path) String() string { return p.storagePath }

// DiskPath returns the absolute on-disk location.
func (p *Path) DiskPath() string { return p.diskPath }

// IsDir returns true if this path points to a directory.
func (p *Path) IsDir() bool { return p.info.IsDir() }

// Info returns the stat info captured at resolution time.
func (p *Path) Info() fs.FileInfo { return p.info }

// FilesystemManager maps storage paths onto the storage root on disk.
// Storage paths are concatenated onto the root unchanged.
type FilesystemManager interface {
	// Root returns the absolute on-disk storage root.
	Root() string

	// DiskPath returns the on-disk location of a storage path.
	DiskPath(storagePath string) string

	// Resolve stats a storage path. Missing paths return an error matching fs.ErrNotExist.
	Resolve(storagePath string) (*Path, error)

	// Open opens a regular file for reading.
	Open(path *Path) (io.ReadSeekCloser, error)

	// Mkdir creates a single directory. An existing directory is not an error;
	// created reports whether this call made it.
	Mkdir(storagePath string) (created bool, err error)

	// Remove deletes a file or empty directory.
	Remove(storagePath string) error

	// FindFiles returns the regular files directly inside dir, skipping
	// staging leftovers and ignored names. Subdirectories are not descended.
	FindFiles(dir *Path) ([]*Path, error)
}
