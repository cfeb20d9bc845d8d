package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"filestore/internal/model"
)

// Principal is an authenticated caller.
type Principal struct {
	UserID   string
	Username string
}

// FileRepository implements create-or-overwrite uploads and owner listings.
type FileRepository struct {
	db           Database
	fsmgr        FilesystemManager
	staging      StagingArea
	materializer *Materializer
	cache        *CacheLayer
	logger       Logger
	metrics      Metrics
	clock        Clock
	idgen        IDGenerator
}

// FileRepositoryDeps groups the collaborators of a FileRepository.
type FileRepositoryDeps struct {
	Database     Database
	Filesystem   FilesystemManager
	Staging      StagingArea
	Materializer *Materializer
	Cache        *CacheLayer
	Logger       Logger
	Metrics      Metrics
	Clock        Clock
	IDGenerator  IDGenerator
}

// NewFileRepository creates a FileRepository.
func NewFileRepository(deps FileRepositoryDeps) *FileRepository {
	return &FileRepository{
		db:           deps.Database,
		fsmgr:        deps.Filesystem,
		staging:      deps.Staging,
		materializer: deps.Materializer,
		cache:        deps.Cache,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
		idgen:        deps.IDGenerator,
	}
}

// CreateOrOverwrite stores the bytes from r at targetPath.
//
// A new path gets its parent directories materialized and a File row owned by
// owner with Downloadable set. An existing path has its bytes replaced and its
// size and modification time refreshed; the owner is unchanged. Bytes are
// staged to a temporary file first, so a failed copy changes neither the
// stored file nor its metadata. Concurrent uploads to one path resolve
// last-writer-wins.
func (r *FileRepository) CreateOrOverwrite(ctx context.Context, owner Principal, src io.Reader, targetPath string) (*model.File, error) {
	if err := ValidatePath(targetPath); err != nil {
		return nil, err
	}

	existing, err := r.db.FindFileByPath(ctx, targetPath)
	if err != nil {
		return nil, fmt.Errorf("checking existing file: %w", err)
	}
	if existing == nil {
		dir, err := r.db.FindDirectoryByPath(ctx, targetPath)
		if err != nil {
			return nil, fmt.Errorf("checking existing directory: %w", err)
		}
		if dir != nil {
			return nil, invalidPath(targetPath, "is a directory")
		}
		if err := r.materializer.EnsureDirectoryChain(ctx, targetPath); err != nil {
			return nil, err
		}
	}

	staged, err := r.staging.Stage(path.Dir(targetPath), src)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			return nil, err
		}
		return nil, storageErr("write", targetPath, err)
	}
	defer staged.Discard()

	now := r.clock.Now()
	candidate := &model.File{
		ID:           r.idgen.New(),
		UserID:       owner.UserID,
		Name:         path.Base(targetPath),
		Path:         targetPath,
		Size:         staged.Size(),
		Downloadable: true,
		CreatedAt:    now,
		ModifiedAt:   now,
	}

	saved, created, err := r.db.SaveFile(ctx, candidate, func(*model.File) error {
		if err := staged.Commit(targetPath); err != nil {
			return storageErr("rename", targetPath, err)
		}
		return nil
	})
	if err != nil {
		if rerr := staged.Revert(); rerr != nil {
			r.logger.Error("restoring file after failed save", "path", targetPath, "error", rerr)
		}
		return nil, fmt.Errorf("saving file %s: %w", targetPath, err)
	}

	r.cache.Invalidate(ctx, pathKey(saved.Path), idKey(saved.ID), listingKey(saved.UserID))
	r.metrics.FileSaved(created, saved.Size)

	if created {
		r.logger.Info("file created", "path", saved.Path, "id", saved.ID, "size", saved.Size, "owner", owner.UserID)
	} else {
		r.logger.Info("file overwritten", "path", saved.Path, "id", saved.ID, "size", saved.Size, "by", owner.UserID)
	}
	return saved, nil
}

// ListByOwner returns every file owned by owner, served from the cache
// when a listing is present.
func (r *FileRepository) ListByOwner(ctx context.Context, owner Principal) ([]*model.File, error) {
	files, err := GetOrCompute(ctx, r.cache, listingKey(owner.UserID), r.cache.TTL().Listing,
		func(ctx context.Context) ([]*model.File, bool, error) {
			files, err := r.db.FindFilesByOwner(ctx, owner.UserID)
			if err != nil {
				return nil, false, err
			}
			return files, len(files) > 0, nil
		})
	if err != nil {
		return nil, fmt.Errorf("listing files for %s: %w", owner.UserID, err)
	}
	if files == nil {
		files = []*model.File{}
	}
	return files, nil
}
