package testutil

import (
	"testing"

	"filestore/internal/fs"
)

// NewTestFilesystem creates an OS filesystem manager rooted at a fresh
// temporary directory.
func NewTestFilesystem(t *testing.T) *fs.OSFilesystemManager {
	t.Helper()

	fsmgr, err := fs.NewOSFilesystemManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create filesystem manager: %v", err)
	}
	return fsmgr
}
