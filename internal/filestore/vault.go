package filestore

import "io"

// Vault stores metadata snapshots off the host.
// All operations stream so large databases are never held in memory.
type Vault interface {
	// PutSnapshot stores a snapshot under name. size is the number of bytes
	// that will be read from r.
	PutSnapshot(name string, r io.Reader, size int64) error

	// GetSnapshot writes the snapshot stored under name to w.
	GetSnapshot(name string, w io.Writer) error

	// ListSnapshots returns every stored snapshot name in ascending order.
	ListSnapshots() ([]string, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup() error
}
