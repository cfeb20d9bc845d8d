package database

import (
	"context"
	"errors"
	pathpkg "path"
	"sync"
	"testing"
	"time"

	"filestore/internal/filestore"
	"filestore/internal/model"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func createUser(t *testing.T, db *SQLiteDatabase, id, username string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Username: username, PasswordHash: "hash", CreatedAt: testTime}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", username, err)
	}
	return u
}

func newFile(id, userID, path string, size int64) *model.File {
	return &model.File{
		ID:           id,
		UserID:       userID,
		Name:         pathpkg.Base(path),
		Path:         path,
		Size:         size,
		Downloadable: true,
		CreatedAt:    testTime,
		ModifiedAt:   testTime,
	}
}

func TestSQLiteDatabase_Users(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and finds user", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")

		byName, err := db.FindUserByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("FindUserByUsername() error = %v", err)
		}
		if byName == nil || byName.ID != "u1" {
			t.Fatalf("FindUserByUsername() = %+v, want id u1", byName)
		}

		byID, err := db.FindUserByID(ctx, "u1")
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if byID == nil || byID.Username != "alice" {
			t.Fatalf("FindUserByID() = %+v, want alice", byID)
		}
		if !byID.CreatedAt.Equal(testTime) {
			t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, testTime)
		}
	})

	t.Run("returns nil when user not found", func(t *testing.T) {
		db := newTestDB(t)

		u, err := db.FindUserByUsername(ctx, "nobody")
		if err != nil {
			t.Fatalf("FindUserByUsername() error = %v", err)
		}
		if u != nil {
			t.Errorf("FindUserByUsername() = %v, want nil", u)
		}
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")

		err := db.CreateUser(ctx, &model.User{ID: "u2", Username: "alice", PasswordHash: "h", CreatedAt: testTime})
		if !errors.Is(err, filestore.ErrConflict) {
			t.Errorf("CreateUser() error = %v, want ErrConflict", err)
		}
	})
}

func TestSQLiteDatabase_CreateDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new directory", func(t *testing.T) {
		db := newTestDB(t)

		dir, inserted, err := db.CreateDirectory(ctx, &model.Directory{ID: "d1", Path: "/docs", CreatedAt: testTime})
		if err != nil {
			t.Fatalf("CreateDirectory() error = %v", err)
		}
		if !inserted {
			t.Error("inserted = false, want true")
		}
		if dir.ID != "d1" || dir.Path != "/docs" {
			t.Errorf("CreateDirectory() = %+v", dir)
		}
	})

	t.Run("existing path returns stored row", func(t *testing.T) {
		db := newTestDB(t)

		if _, _, err := db.CreateDirectory(ctx, &model.Directory{ID: "d1", Path: "/docs", CreatedAt: testTime}); err != nil {
			t.Fatalf("first CreateDirectory() error = %v", err)
		}
		dir, inserted, err := db.CreateDirectory(ctx, &model.Directory{ID: "d2", Path: "/docs", CreatedAt: testTime})
		if err != nil {
			t.Fatalf("second CreateDirectory() error = %v", err)
		}
		if inserted {
			t.Error("inserted = true for existing path, want false")
		}
		if dir.ID != "d1" {
			t.Errorf("ID = %s, want d1", dir.ID)
		}
	})

	t.Run("concurrent inserts leave one row", func(t *testing.T) {
		db := newTestDB(t)

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		insertedCount := 0
		ids := map[string]bool{}

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				dir, inserted, err := db.CreateDirectory(ctx, &model.Directory{
					ID:        string(rune('a' + i)),
					Path:      "/shared",
					CreatedAt: testTime,
				})
				if err != nil {
					t.Errorf("CreateDirectory() error = %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if inserted {
					insertedCount++
				}
				ids[dir.ID] = true
			}(i)
		}
		wg.Wait()

		if insertedCount != 1 {
			t.Errorf("inserted count = %d, want 1", insertedCount)
		}
		if len(ids) != 1 {
			t.Errorf("callers saw %d distinct rows, want 1", len(ids))
		}
	})

	t.Run("finds by id and path", func(t *testing.T) {
		db := newTestDB(t)
		if _, _, err := db.CreateDirectory(ctx, &model.Directory{ID: "d1", Path: "/docs", CreatedAt: testTime}); err != nil {
			t.Fatalf("CreateDirectory() error = %v", err)
		}

		byID, err := db.FindDirectoryByID(ctx, "d1")
		if err != nil || byID == nil || byID.Path != "/docs" {
			t.Errorf("FindDirectoryByID() = %+v, %v", byID, err)
		}
		byPath, err := db.FindDirectoryByPath(ctx, "/docs")
		if err != nil || byPath == nil || byPath.ID != "d1" {
			t.Errorf("FindDirectoryByPath() = %+v, %v", byPath, err)
		}
		missing, err := db.FindDirectoryByPath(ctx, "/nope")
		if err != nil || missing != nil {
			t.Errorf("FindDirectoryByPath(missing) = %+v, %v, want nil, nil", missing, err)
		}
	})

	t.Run("lists in path order", func(t *testing.T) {
		db := newTestDB(t)
		for i, p := range []string{"/b", "/a/c", "/a"} {
			d := &model.Directory{ID: string(rune('x' + i)), Path: p, CreatedAt: testTime}
			if _, _, err := db.CreateDirectory(ctx, d); err != nil {
				t.Fatalf("CreateDirectory(%s) error = %v", p, err)
			}
		}

		dirs, err := db.ListDirectories(ctx)
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		var got []string
		for _, d := range dirs {
			got = append(got, d.Path)
		}
		want := []string{"/a", "/a/c", "/b"}
		if len(got) != len(want) {
			t.Fatalf("ListDirectories() paths = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ListDirectories()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}

func TestSQLiteDatabase_SaveFile(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new file", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")

		saved, created, err := db.SaveFile(ctx, newFile("f1", "u1", "/docs/x.txt", 50), nil)
		if err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}
		if !created {
			t.Error("created = false, want true")
		}
		if saved.ID != "f1" || saved.Size != 50 || !saved.Downloadable {
			t.Errorf("SaveFile() = %+v", saved)
		}
	})

	t.Run("overwrite keeps id and owner and updates size", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")
		createUser(t, db, "u2", "bob")

		if _, _, err := db.SaveFile(ctx, newFile("f1", "u1", "/docs/x.txt", 50), nil); err != nil {
			t.Fatalf("first SaveFile() error = %v", err)
		}

		second := newFile("f2", "u2", "/docs/x.txt", 80)
		second.ModifiedAt = testTime.Add(time.Hour)
		saved, created, err := db.SaveFile(ctx, second, nil)
		if err != nil {
			t.Fatalf("second SaveFile() error = %v", err)
		}
		if created {
			t.Error("created = true for overwrite, want false")
		}
		if saved.ID != "f1" {
			t.Errorf("ID = %s, want f1", saved.ID)
		}
		if saved.UserID != "u1" {
			t.Errorf("UserID = %s, want u1 (owner unchanged)", saved.UserID)
		}
		if saved.Size != 80 {
			t.Errorf("Size = %d, want 80", saved.Size)
		}
		if !saved.ModifiedAt.Equal(second.ModifiedAt) {
			t.Errorf("ModifiedAt = %v, want %v", saved.ModifiedAt, second.ModifiedAt)
		}
		if !saved.CreatedAt.Equal(testTime) {
			t.Errorf("CreatedAt = %v, want %v", saved.CreatedAt, testTime)
		}

		files, err := db.FindFilesByOwner(ctx, "u1")
		if err != nil {
			t.Fatalf("FindFilesByOwner() error = %v", err)
		}
		if len(files) != 1 {
			t.Errorf("len(files) = %d, want 1", len(files))
		}
	})

	t.Run("failing hook rolls back", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")

		hookErr := errors.New("rename failed")
		_, _, err := db.SaveFile(ctx, newFile("f1", "u1", "/docs/x.txt", 50), func(*model.File) error {
			return hookErr
		})
		if !errors.Is(err, hookErr) {
			t.Fatalf("SaveFile() error = %v, want %v", err, hookErr)
		}

		f, err := db.FindFileByPath(ctx, "/docs/x.txt")
		if err != nil {
			t.Fatalf("FindFileByPath() error = %v", err)
		}
		if f != nil {
			t.Errorf("FindFileByPath() = %+v, want nil after rollback", f)
		}
	})

	t.Run("failing hook on overwrite keeps old size", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")

		if _, _, err := db.SaveFile(ctx, newFile("f1", "u1", "/docs/x.txt", 50), nil); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}
		_, _, err := db.SaveFile(ctx, newFile("f2", "u1", "/docs/x.txt", 99), func(*model.File) error {
			return errors.New("boom")
		})
		if err == nil {
			t.Fatal("SaveFile() expected error")
		}

		f, _ := db.FindFileByID(ctx, "f1")
		if f == nil || f.Size != 50 {
			t.Errorf("file after failed overwrite = %+v, want size 50", f)
		}
	})

	t.Run("hook sees stored row", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1", "alice")
		if _, _, err := db.SaveFile(ctx, newFile("f1", "u1", "/docs/x.txt", 50), nil); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		var seen string
		_, _, err := db.SaveFile(ctx, newFile("f2", "u1", "/docs/x.txt", 60), func(f *model.File) error {
			seen = f.ID
			return nil
		})
		if err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}
		if seen != "f1" {
			t.Errorf("hook saw id %q, want f1", seen)
		}
	})

	t.Run("unknown owner is rejected", func(t *testing.T) {
		db := newTestDB(t)

		_, _, err := db.SaveFile(ctx, newFile("f1", "ghost", "/x.txt", 1), nil)
		if !errors.Is(err, filestore.ErrUnauthorized) {
			t.Errorf("SaveFile() error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestSQLiteDatabase_FindFilesByOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, db, "u1", "alice")
	createUser(t, db, "u2", "bob")

	for _, f := range []*model.File{
		newFile("f1", "u1", "/b/x.txt", 1),
		newFile("f2", "u1", "/a/x.txt", 2),
		newFile("f3", "u2", "/c/x.txt", 3),
	} {
		if _, _, err := db.SaveFile(ctx, f, nil); err != nil {
			t.Fatalf("SaveFile(%s) error = %v", f.Path, err)
		}
	}

	files, err := db.FindFilesByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("FindFilesByOwner() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}
	if files[0].Path != "/a/x.txt" || files[1].Path != "/b/x.txt" {
		t.Errorf("paths = %s, %s; want ordered by path", files[0].Path, files[1].Path)
	}

	none, err := db.FindFilesByOwner(ctx, "u3")
	if err != nil {
		t.Fatalf("FindFilesByOwner() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, db, "u1", "alice")

	dest := t.TempDir() + "/backup.db"
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	copyDB, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer copyDB.Close()

	if err := copyDB.CheckMigrations(); err != nil {
		t.Errorf("backup CheckMigrations() error = %v", err)
	}
	u, err := copyDB.FindUserByUsername(ctx, "alice")
	if err != nil || u == nil {
		t.Errorf("backup FindUserByUsername() = %v, %v", u, err)
	}
}

func TestSQLiteDatabase_MigrationStatus(t *testing.T) {
	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	defer db.Close()

	before, err := db.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if before.Current != 0 || before.UpToDate() {
		t.Errorf("fresh status = %+v", before)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	after, err := db.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if !after.UpToDate() || after.Current != after.Latest {
		t.Errorf("migrated status = %+v", after)
	}
}
