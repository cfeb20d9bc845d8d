package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filestore/internal/archive"
	"filestore/internal/database"
	"filestore/internal/filestore"
	"filestore/internal/fs"
	"filestore/internal/model"
	"filestore/internal/staging"
	"filestore/internal/testutil"
)

// testEnv is a fully wired core over a temporary root and in-memory store.
type testEnv struct {
	db    *database.SQLiteDatabase
	fsmgr *fs.OSFilesystemManager
	cache *testutil.MapCache
	layer *filestore.CacheLayer
	clock *testutil.StubClock
	svc   *filestore.Service
}

type envOption func(*filestore.ServiceDeps)

func withStagingLimit(n int64) envOption {
	return func(d *filestore.ServiceDeps) {
		d.Staging = staging.NewStagingArea(d.Filesystem, n)
	}
}

func withBackend(c filestore.Cache) envOption {
	return func(d *filestore.ServiceDeps) {
		d.Cache = filestore.NewCacheLayer(c, filestore.DefaultCacheTTL(), nil, nil)
	}
}

// withDatabase routes the service through wrap, which must delegate to the
// database it is handed.
func withDatabase(wrap func(filestore.Database) filestore.Database) envOption {
	return func(d *filestore.ServiceDeps) {
		d.Database = wrap(d.Database)
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := testutil.NewTestDatabase(t)
	fsmgr := testutil.NewTestFilesystem(t)
	mc := testutil.NewMapCache()
	clock := testutil.FixedClock()

	deps := filestore.ServiceDeps{
		Database:    db,
		Filesystem:  fsmgr,
		Staging:     staging.NewStagingArea(fsmgr, 1<<20),
		Cache:       filestore.NewCacheLayer(mc, filestore.DefaultCacheTTL(), nil, nil),
		Archiver:    archive.NewEngine(fsmgr),
		Clock:       clock,
		IDGenerator: testutil.NewStubIDGenerator(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc := filestore.NewService(deps)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	return &testEnv{db: db, fsmgr: fsmgr, cache: mc, layer: deps.Cache, clock: clock, svc: svc}
}

// addUser inserts a user and returns it as a principal.
func (e *testEnv) addUser(t *testing.T, username string) filestore.Principal {
	t.Helper()

	u := &model.User{
		ID:           "user-" + username,
		Username:     username,
		PasswordHash: "unused",
		CreatedAt:    e.clock.Now(),
	}
	if err := e.db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return filestore.Principal{UserID: u.ID, Username: u.Username}
}

func (e *testEnv) upload(t *testing.T, owner filestore.Principal, p, content string) *model.File {
	t.Helper()

	f, err := e.svc.Upload(context.Background(), owner, p, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", p, err)
	}
	return f
}

// readDisk returns the bytes stored at storage path p.
func (e *testEnv) readDisk(t *testing.T, p string) string {
	t.Helper()

	data, err := os.ReadFile(e.fsmgr.DiskPath(p))
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", p, err)
	}
	return string(data)
}

// stagingLeftovers lists temporary files under the storage root.
func (e *testEnv) stagingLeftovers(t *testing.T) []string {
	t.Helper()

	var found []string
	err := filepath.WalkDir(e.fsmgr.Root(), func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), filestore.StagingPrefix) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
	return found
}
