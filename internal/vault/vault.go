package vault

import (
	"fmt"
	"strings"

	"filestore/internal/filestore"
)

// validateName rejects snapshot names that could address anything outside
// the vault's snapshot area.
func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}

func notFound(name string) error {
	return fmt.Errorf("snapshot %s: %w", name, filestore.ErrNotFound)
}
