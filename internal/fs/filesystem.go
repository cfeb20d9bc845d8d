package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"filestore/internal/filestore"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// Storage paths are mapped onto root; "/a/b.txt" lives at root/a/b.txt.
type OSFilesystemManager struct {
	root   string
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager rooted at root.
// A nil ignore matcher hides nothing.
func NewOSFilesystemManager(root string, ignore *IgnoreMatcher) (*OSFilesystemManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if ignore == nil {
		ignore = NewIgnoreMatcher(nil)
	}
	return &OSFilesystemManager{root: abs, ignore: ignore}, nil
}

func (m *OSFilesystemManager) Root() string {
	return m.root
}

func (m *OSFilesystemManager) DiskPath(storagePath string) string {
	return filepath.Join(m.root, filepath.FromSlash(storagePath))
}

// diskPath maps storagePath and refuses anything that would leave the root.
func (m *OSFilesystemManager) diskPath(storagePath string) (string, error) {
	p := m.DiskPath(storagePath)
	if p != m.root && !strings.HasPrefix(p, m.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes storage root: %s", storagePath)
	}
	return p, nil
}

// Resolve stats a storage path without following symlinks.
func (m *OSFilesystemManager) Resolve(storagePath string) (*filestore.Path, error) {
	diskPath, err := m.diskPath(storagePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(diskPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't serve
	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", storagePath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", storagePath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", storagePath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", storagePath)
	}

	return filestore.NewPath(storagePath, diskPath, info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(p *filestore.Path) (io.ReadSeekCloser, error) {
	if p.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", p.String())
	}
	return os.Open(p.DiskPath())
}

// Mkdir creates one directory. Losing a creation race to another writer is
// not an error; finding a non-directory in the way is.
func (m *OSFilesystemManager) Mkdir(storagePath string) (bool, error) {
	diskPath, err := m.diskPath(storagePath)
	if err != nil {
		return false, err
	}

	err = os.Mkdir(diskPath, 0755)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return false, fmt.Errorf("creating directory: %w", err)
	}

	info, statErr := os.Lstat(diskPath)
	if statErr != nil {
		return false, fmt.Errorf("stat existing path: %w", statErr)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("creating directory %s: %w", storagePath, err)
	}
	return false, nil
}

func (m *OSFilesystemManager) Remove(storagePath string) error {
	diskPath, err := m.diskPath(storagePath)
	if err != nil {
		return err
	}
	return os.Remove(diskPath)
}

// FindFiles lists the regular files directly inside dir.
func (m *OSFilesystemManager) FindFiles(dir *filestore.Path) ([]*filestore.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	entries, err := os.ReadDir(dir.DiskPath())
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []*filestore.Path
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, filestore.StagingPrefix) {
			continue
		}
		storagePath := path.Join(dir.String(), name)
		if m.ignore.Match(storagePath) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		paths = append(paths, filestore.NewPath(storagePath, filepath.Join(dir.DiskPath(), name), info))
	}

	return paths, nil
}

// Compile-time check that OSFilesystemManager implements filestore.FilesystemManager interface
var _ filestore.FilesystemManager = (*OSFilesystemManager)(nil)
