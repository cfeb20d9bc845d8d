package filestore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"filestore/internal/filestore"
	"filestore/internal/model"
	"filestore/internal/testutil"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.addUser(t, "alice")
	file := env.upload(t, alice, "/docs/readme.txt", "hello")
	docs, err := env.db.FindDirectoryByPath(ctx, "/docs")
	if err != nil || docs == nil {
		t.Fatalf("FindDirectoryByPath() = %v, %v", docs, err)
	}

	r := filestore.NewResolver(env.db, env.layer)

	tests := []struct {
		name     string
		token    filestore.Token
		wantKind filestore.EntryKind
		wantPath string
	}{
		{name: "file by path", token: filestore.PathToken("/docs/readme.txt"), wantKind: filestore.EntryFile, wantPath: "/docs/readme.txt"},
		{name: "file by id", token: filestore.IDToken(file.ID), wantKind: filestore.EntryFile, wantPath: "/docs/readme.txt"},
		{name: "directory by path", token: filestore.PathToken("/docs"), wantKind: filestore.EntryDirectory, wantPath: "/docs"},
		{name: "directory by id", token: filestore.IDToken(docs.ID), wantKind: filestore.EntryDirectory, wantPath: "/docs"},
		{name: "root", token: filestore.PathToken("/"), wantKind: filestore.EntryDirectory, wantPath: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := r.Resolve(ctx, tt.token)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if entry.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", entry.Kind, tt.wantKind)
			}
			if entry.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", entry.Path, tt.wantPath)
			}
			if (entry.File != nil) != (tt.wantKind == filestore.EntryFile) {
				t.Errorf("File set = %v for kind %v", entry.File != nil, entry.Kind)
			}
			if !entry.Downloadable() {
				t.Error("Downloadable() = false")
			}
		})
	}
}

func TestResolver_NotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := filestore.NewResolver(env.db, env.layer)

	for _, tok := range []filestore.Token{filestore.PathToken("/nope"), filestore.IDToken("nope"), {}} {
		_, err := r.Resolve(ctx, tok)
		if !errors.Is(err, filestore.ErrNotFound) {
			t.Errorf("Resolve(%v) error = %v, want ErrNotFound", tok, err)
		}
	}
	if env.cache.Has(filestore.PathKey("/nope")) || env.cache.Has(filestore.IDKey("nope")) {
		t.Error("negative result was cached")
	}
}

func TestResolver_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.addUser(t, "alice")
	file := env.upload(t, alice, "/a.txt", "hello")

	r := filestore.NewResolver(env.db, env.layer)
	if _, err := r.Resolve(ctx, filestore.IDToken(file.ID)); err != nil {
		t.Fatal(err)
	}
	if !env.cache.Has(filestore.IDKey(file.ID)) {
		t.Fatal("resolution was not cached")
	}

	// A cached entry answers without the store.
	env.db.Close()
	entry, err := r.Resolve(ctx, filestore.IDToken(file.ID))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if entry.File.ID != file.ID || entry.File.Size != 5 {
		t.Errorf("cached entry = %+v", entry.File)
	}
	if !entry.File.CreatedAt.Equal(file.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", entry.File.CreatedAt, file.CreatedAt)
	}
}

func TestResolver_FailingCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withBackend(testutil.FailingCache{}))
	alice := env.addUser(t, "alice")
	env.upload(t, alice, "/a.txt", "hello")

	entry, err := env.svc.Resolve(ctx, filestore.PathToken("/a.txt"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if entry.Kind != filestore.EntryFile {
		t.Errorf("Kind = %v, want file", entry.Kind)
	}
}

// interleavingDB runs during once, right after the next FindFileByPath has
// read its row.
type interleavingDB struct {
	filestore.Database

	mu     sync.Mutex
	during func()
}

func (d *interleavingDB) FindFileByPath(ctx context.Context, p string) (*model.File, error) {
	f, err := d.Database.FindFileByPath(ctx, p)

	d.mu.Lock()
	during := d.during
	d.during = nil
	d.mu.Unlock()

	if during != nil {
		during()
	}
	return f, err
}

func TestResolver_OverwriteDuringLookupIsNotCached(t *testing.T) {
	ctx := context.Background()
	db := &interleavingDB{}
	env := newTestEnv(t, withDatabase(func(inner filestore.Database) filestore.Database {
		db.Database = inner
		return db
	}))
	alice := env.addUser(t, "alice")
	env.upload(t, alice, "/docs/a.txt", "v1")

	db.mu.Lock()
	db.during = func() { env.upload(t, alice, "/docs/a.txt", "version two") }
	db.mu.Unlock()

	tok := filestore.PathToken("/docs/a.txt")
	stale, err := env.svc.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stale.File.Size != 2 {
		t.Fatalf("lookup read size %d, want the row from before the overwrite", stale.File.Size)
	}
	if env.cache.Has(filestore.PathKey("/docs/a.txt")) {
		t.Error("row read before the overwrite was cached after its invalidation")
	}

	fresh, err := env.svc.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if fresh.File.Size != int64(len("version two")) {
		t.Errorf("Size = %d, want %d", fresh.File.Size, len("version two"))
	}
}
