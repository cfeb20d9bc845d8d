package filestore

import (
	"context"
	"fmt"

	"filestore/internal/model"
)

// EntryKind distinguishes files from directories.
type EntryKind int

const (
	EntryFile EntryKind = iota + 1
	EntryDirectory
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// ResolvedEntry is the result of resolving a Token.
// Exactly one of File and Directory is set, matching Kind.
type ResolvedEntry struct {
	Kind      EntryKind        `cbor:"kind"`
	Path      string           `cbor:"path"`
	File      *model.File      `cbor:"file,omitempty"`
	Directory *model.Directory `cbor:"directory,omitempty"`
}

// Downloadable reports whether the entry may be served. Directories carry no
// flag and are always downloadable through an archive.
func (e *ResolvedEntry) Downloadable() bool {
	if e.Kind == EntryFile {
		return e.File.Downloadable
	}
	return true
}

// Resolver turns tokens into entries, consulting the cache then the store.
type Resolver struct {
	db    Database
	cache *CacheLayer
}

// NewResolver creates a Resolver.
func NewResolver(db Database, cache *CacheLayer) *Resolver {
	return &Resolver{db: db, cache: cache}
}

// Resolve looks up the File or Directory a token names. Files win over
// directories for the same id. Returns ErrNotFound if neither matches.
func (r *Resolver) Resolve(ctx context.Context, tok Token) (*ResolvedEntry, error) {
	var key string
	var lookup func(context.Context) (*ResolvedEntry, bool, error)

	switch tok.Kind {
	case TokenPath:
		key = pathKey(tok.Value)
		lookup = func(ctx context.Context) (*ResolvedEntry, bool, error) {
			return r.lookupPath(ctx, tok.Value)
		}
	case TokenID:
		key = idKey(tok.Value)
		lookup = func(ctx context.Context) (*ResolvedEntry, bool, error) {
			return r.lookupID(ctx, tok.Value)
		}
	default:
		return nil, fmt.Errorf("%w: token %q has no kind", ErrNotFound, tok.Value)
	}

	entry, err := GetOrCompute(ctx, r.cache, key, r.cache.TTL().Resolution, lookup)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", tok, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tok)
	}
	return entry, nil
}

func (r *Resolver) lookupPath(ctx context.Context, p string) (*ResolvedEntry, bool, error) {
	file, err := r.db.FindFileByPath(ctx, p)
	if err != nil {
		return nil, false, fmt.Errorf("finding file by path: %w", err)
	}
	if file != nil {
		return fileEntry(file), true, nil
	}

	dir, err := r.db.FindDirectoryByPath(ctx, p)
	if err != nil {
		return nil, false, fmt.Errorf("finding directory by path: %w", err)
	}
	if dir != nil {
		return dirEntry(dir), true, nil
	}
	return nil, false, nil
}

func (r *Resolver) lookupID(ctx context.Context, id string) (*ResolvedEntry, bool, error) {
	file, err := r.db.FindFileByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("finding file by id: %w", err)
	}
	if file != nil {
		return fileEntry(file), true, nil
	}

	dir, err := r.db.FindDirectoryByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("finding directory by id: %w", err)
	}
	if dir != nil {
		return dirEntry(dir), true, nil
	}
	return nil, false, nil
}

func fileEntry(f *model.File) *ResolvedEntry {
	return &ResolvedEntry{Kind: EntryFile, Path: f.Path, File: f}
}

func dirEntry(d *model.Directory) *ResolvedEntry {
	return &ResolvedEntry{Kind: EntryDirectory, Path: d.Path, Directory: d}
}
