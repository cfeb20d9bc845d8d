package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filestore/internal/filestore"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// Snapshots are plain files:
//
//	<root>/
//	  snapshots/
//	    20240115T103000.000000000Z.db.age
type FileSystemVault struct {
	name        string
	root        string
	snapshotDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotDir := filepath.Join(root, "snapshots")

	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		snapshotDir: snapshotDir,
	}, nil
}

// PutSnapshot stores a snapshot. An existing snapshot with the same name is replaced.
func (v *FileSystemVault) PutSnapshot(name string, r io.Reader, size int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	return v.writeFile(filepath.Join(v.snapshotDir, name), r, size)
}

// GetSnapshot retrieves a snapshot and writes it to w.
func (v *FileSystemVault) GetSnapshot(name string, w io.Writer) error {
	if err := validateName(name); err != nil {
		return err
	}
	return v.readFile(filepath.Join(v.snapshotDir, name), w, name)
}

// ListSnapshots returns snapshot names in ascending order.
func (v *FileSystemVault) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(v.snapshotDir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup verifies that the vault directories are accessible and writable.
func (v *FileSystemVault) ValidateSetup() error {
	// Check that root directory exists and is a directory
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	info, err = os.Stat(v.snapshotDir)
	if err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", v.snapshotDir)
	}

	probe, err := os.CreateTemp(v.snapshotDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault directory not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile copies the file at srcPath to w.
func (v *FileSystemVault) readFile(srcPath string, w io.Writer, name string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(name)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemVault implements filestore.Vault interface
var _ filestore.Vault = (*FileSystemVault)(nil)
