package vault

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"filestore/internal/filestore"
)

func TestMemoryVault_PutAndGetSnapshot(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name     string
		snapshot string
		content  string
	}{
		{
			name:     "store and retrieve snapshot",
			snapshot: "a.db",
			content:  "hello world",
		},
		{
			name:     "store empty snapshot",
			snapshot: "empty.db",
			content:  "",
		},
		{
			name:     "store large snapshot",
			snapshot: "large.db",
			content:  strings.Repeat("x", 10000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.content)
			if err := vault.PutSnapshot(tt.snapshot, r, int64(len(tt.content))); err != nil {
				t.Fatalf("PutSnapshot() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetSnapshot(tt.snapshot, &buf); err != nil {
				t.Fatalf("GetSnapshot() unexpected error: %v", err)
			}

			if got := buf.String(); got != tt.content {
				t.Errorf("GetSnapshot() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_GetSnapshotNotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	err := vault.GetSnapshot("nonexistent", &buf)
	if !errors.Is(err, filestore.ErrNotFound) {
		t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryVault_PutSnapshotSizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	err := vault.PutSnapshot("a.db", strings.NewReader("hello"), 100)
	if err == nil {
		t.Error("PutSnapshot() expected error for size mismatch, got nil")
	}

	names, _ := vault.ListSnapshots()
	if len(names) != 0 {
		t.Errorf("failed put stored a snapshot: %v", names)
	}
}

func TestMemoryVault_ListSnapshots(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	for _, name := range []string{"c.db", "a.db", "b.db"} {
		if err := vault.PutSnapshot(name, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("PutSnapshot(%s) error = %v", name, err)
		}
	}

	got, err := vault.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if want := []string{"a.db", "b.db", "c.db"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListSnapshots() = %v, want %v", got, want)
	}
}

func TestMemoryVault_ValidateSetup(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	if err := vault.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() unexpected error: %v", err)
	}
}
