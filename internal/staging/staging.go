package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filestore/internal/filestore"
)

// stagingArea writes uploads to a temporary file beside their destination so
// that Commit is a same-directory rename.
type stagingArea struct {
	fsmgr   filestore.FilesystemManager
	maxSize int64
}

var _ filestore.StagingArea = (*stagingArea)(nil)

// NewStagingArea creates a staging area that accepts uploads of at most
// maxSize bytes.
func NewStagingArea(fsmgr filestore.FilesystemManager, maxSize int64) filestore.StagingArea {
	return &stagingArea{fsmgr: fsmgr, maxSize: maxSize}
}

// Stage streams r into a new temporary file inside dirPath.
func (s *stagingArea) Stage(dirPath string, r io.Reader) (filestore.StagedUpload, error) {
	f, err := os.CreateTemp(s.fsmgr.DiskPath(dirPath), filestore.StagingPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	size, err := s.copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("setting permissions: %w", err)
	}

	return &stagedFile{fsmgr: s.fsmgr, tmpPath: tmpPath, size: size}, nil
}

// copy writes at most maxSize bytes of r to f and syncs it.
func (s *stagingArea) copy(f *os.File, r io.Reader) (int64, error) {
	// One extra byte distinguishes "exactly maxSize" from "too large".
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return 0, fmt.Errorf("writing temp file: %w", err)
	}
	if n > s.maxSize {
		return 0, fmt.Errorf("upload exceeds %d bytes: %w", s.maxSize, filestore.ErrPayloadTooLarge)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("syncing temp file: %w", err)
	}
	return n, nil
}

// stagedFile is one fully written upload waiting for Commit or Discard.
type stagedFile struct {
	fsmgr   filestore.FilesystemManager
	tmpPath string
	size    int64

	mu        sync.Mutex
	committed bool
	target    string
	prevPath  string // hard link to the bytes Commit replaced
}

func (f *stagedFile) Size() int64 {
	return f.size
}

// Commit renames the temporary file over storagePath.
func (f *stagedFile) Commit(storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.committed {
		return fmt.Errorf("upload already committed")
	}

	target := f.fsmgr.DiskPath(storagePath)
	if filepath.Dir(target) != filepath.Dir(f.tmpPath) {
		return fmt.Errorf("commit target %s is outside the staging directory", storagePath)
	}
	prevPath := f.tmpPath + ".prev"
	if err := os.Link(target, prevPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("keeping previous contents: %w", err)
		}
		prevPath = ""
	}
	if err := os.Rename(f.tmpPath, target); err != nil {
		if prevPath != "" {
			os.Remove(prevPath)
		}
		return fmt.Errorf("renaming into place: %w", err)
	}
	f.committed = true
	f.target = target
	f.prevPath = prevPath
	return nil
}

// Revert undoes a Commit: the bytes it replaced are put back, or the
// committed file is removed if there were none. A no-op before Commit.
func (f *stagedFile) Revert() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.committed {
		return nil
	}
	if f.prevPath == "" {
		if err := os.Remove(f.target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing committed file: %w", err)
		}
	} else if err := os.Rename(f.prevPath, f.target); err != nil {
		return fmt.Errorf("restoring previous contents: %w", err)
	}
	f.committed = false
	f.prevPath = ""
	return nil
}

// Discard removes the temporary file unless it was committed, and drops the
// copy of any replaced bytes.
func (f *stagedFile) Discard() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.committed {
		if f.prevPath == "" {
			return nil
		}
		if err := os.Remove(f.prevPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing previous contents: %w", err)
		}
		f.prevPath = ""
		return nil
	}
	if err := os.Remove(f.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing temp file: %w", err)
	}
	return nil
}
