package fs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

func newTestManager(t *testing.T, patterns ...string) (*OSFilesystemManager, string) {
	t.Helper()
	root := t.TempDir()
	m, err := NewOSFilesystemManager(root, NewIgnoreMatcher(patterns))
	if err != nil {
		t.Fatalf("NewOSFilesystemManager() error = %v", err)
	}
	return m, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestOSFilesystemManager_DiskPath(t *testing.T) {
	m, root := newTestManager(t)

	if got, want := m.DiskPath("/docs/a.txt"), filepath.Join(root, "docs", "a.txt"); got != want {
		t.Errorf("DiskPath() = %q, want %q", got, want)
	}
	if got := m.DiskPath("/"); got != root {
		t.Errorf("DiskPath(/) = %q, want %q", got, root)
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	m, root := newTestManager(t)
	writeFile(t, filepath.Join(root, "docs", "a.txt"), "hello")

	t.Run("file", func(t *testing.T) {
		p, err := m.Resolve("/docs/a.txt")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsDir() {
			t.Error("expected a file")
		}
		if p.String() != "/docs/a.txt" {
			t.Errorf("String() = %q", p.String())
		}
		if p.Info().Size() != 5 {
			t.Errorf("Size = %d, want 5", p.Info().Size())
		}
	})

	t.Run("directory", func(t *testing.T) {
		p, err := m.Resolve("/docs")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !p.IsDir() {
			t.Error("expected a directory")
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := m.Resolve("/docs/missing.txt")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Resolve() error = %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("escaping path", func(t *testing.T) {
		if _, err := m.Resolve("/../outside"); err == nil {
			t.Error("Resolve() expected error for path outside root")
		}
	})

	t.Run("symlink", func(t *testing.T) {
		if err := os.Symlink(filepath.Join(root, "docs", "a.txt"), filepath.Join(root, "link.txt")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if _, err := m.Resolve("/link.txt"); err == nil {
			t.Error("Resolve() expected error for symlink")
		}
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	m, root := newTestManager(t)
	writeFile(t, filepath.Join(root, "a.txt"), "content")

	p, err := m.Resolve("/a.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	rc, err := m.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}

	dir, err := m.Resolve("/")
	if err != nil {
		t.Fatalf("Resolve(/) error = %v", err)
	}
	if _, err := m.Open(dir); err == nil {
		t.Error("Open() expected error for directory")
	}
}

func TestOSFilesystemManager_Mkdir(t *testing.T) {
	t.Run("creates then tolerates existing", func(t *testing.T) {
		m, root := newTestManager(t)

		created, err := m.Mkdir("/docs")
		if err != nil || !created {
			t.Fatalf("Mkdir() = %v, %v; want true, nil", created, err)
		}
		created, err = m.Mkdir("/docs")
		if err != nil || created {
			t.Fatalf("second Mkdir() = %v, %v; want false, nil", created, err)
		}
		if info, err := os.Stat(filepath.Join(root, "docs")); err != nil || !info.IsDir() {
			t.Errorf("directory not on disk: %v", err)
		}
	})

	t.Run("occupied by file", func(t *testing.T) {
		m, root := newTestManager(t)
		writeFile(t, filepath.Join(root, "docs"), "not a dir")

		_, err := m.Mkdir("/docs")
		if !errors.Is(err, fs.ErrExist) {
			t.Errorf("Mkdir() error = %v, want fs.ErrExist", err)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		m, _ := newTestManager(t)
		if _, err := m.Mkdir("/a/b"); err == nil {
			t.Error("Mkdir() expected error when parent is missing")
		}
	})

	t.Run("concurrent creators", func(t *testing.T) {
		m, _ := newTestManager(t)

		var wg sync.WaitGroup
		var mu sync.Mutex
		createdCount := 0
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := m.Mkdir("/shared")
				if err != nil {
					errs <- err
					return
				}
				if created {
					mu.Lock()
					createdCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("Mkdir() error = %v", err)
		}
		if createdCount != 1 {
			t.Errorf("created reported %d times, want 1", createdCount)
		}
	})
}

func TestOSFilesystemManager_Remove(t *testing.T) {
	m, root := newTestManager(t)
	writeFile(t, filepath.Join(root, "a.txt"), "x")

	if err := m.Remove("/a.txt"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
}

func TestOSFilesystemManager_FindFiles(t *testing.T) {
	m, root := newTestManager(t, "*.log", "docs/private.txt")
	writeFile(t, filepath.Join(root, "docs", "readme.txt"), "r")
	writeFile(t, filepath.Join(root, "docs", "notes.md"), "n")
	writeFile(t, filepath.Join(root, "docs", "debug.log"), "ignored")
	writeFile(t, filepath.Join(root, "docs", "private.txt"), "ignored")
	writeFile(t, filepath.Join(root, "docs", ".tmp-123"), "staging")
	writeFile(t, filepath.Join(root, "docs", "sub", "deep.txt"), "not descended")

	dir, err := m.Resolve("/docs")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	paths, err := m.FindFiles(dir)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	var got []string
	for _, p := range paths {
		got = append(got, p.String())
		if p.DiskPath() != m.DiskPath(p.String()) {
			t.Errorf("DiskPath() = %q, want %q", p.DiskPath(), m.DiskPath(p.String()))
		}
	}
	sort.Strings(got)

	want := []string{"/docs/notes.md", "/docs/readme.txt"}
	if len(got) != len(want) {
		t.Fatalf("FindFiles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FindFiles()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	file, err := m.Resolve("/docs/readme.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := m.FindFiles(file); err == nil {
		t.Error("FindFiles() expected error for a file")
	}
}
