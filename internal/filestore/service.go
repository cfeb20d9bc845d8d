package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"time"

	"filestore/internal/model"
)

// Download is a payload ready to hand to a transport.
type Download struct {
	Filename  string
	MediaType string
	Size      int64
	ModTime   time.Time
	Content   io.ReadSeekCloser
}

// PingResult holds round-trip times. Cache is negative when the cache failed.
type PingResult struct {
	Database time.Duration
	Cache    time.Duration
}

// Service exposes the list, upload and download operations.
type Service struct {
	db           Database
	fsmgr        FilesystemManager
	cache        *CacheLayer
	resolver     *Resolver
	materializer *Materializer
	repo         *FileRepository
	archiver     Archiver
	logger       Logger
	metrics      Metrics
	clock        Clock
}

// ServiceDeps groups the collaborators of a Service.
type ServiceDeps struct {
	Database    Database
	Filesystem  FilesystemManager
	Staging     StagingArea
	Cache       *CacheLayer
	Archiver    Archiver
	Logger      Logger
	Metrics     Metrics
	Clock       Clock
	IDGenerator IDGenerator
}

// NewService wires the core components together.
func NewService(deps ServiceDeps) *Service {
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = UUIDGenerator{}
	}

	materializer := NewMaterializer(deps.Database, deps.Filesystem, deps.Logger, deps.Clock, deps.IDGenerator)
	repo := NewFileRepository(FileRepositoryDeps{
		Database:     deps.Database,
		Filesystem:   deps.Filesystem,
		Staging:      deps.Staging,
		Materializer: materializer,
		Cache:        deps.Cache,
		Logger:       deps.Logger,
		Metrics:      deps.Metrics,
		Clock:        deps.Clock,
		IDGenerator:  deps.IDGenerator,
	})

	return &Service{
		db:           deps.Database,
		fsmgr:        deps.Filesystem,
		cache:        deps.Cache,
		resolver:     NewResolver(deps.Database, deps.Cache),
		materializer: materializer,
		repo:         repo,
		archiver:     deps.Archiver,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
	}
}

// Init materializes the storage root.
func (s *Service) Init(ctx context.Context) error {
	if err := s.materializer.EnsureRoot(ctx); err != nil {
		return fmt.Errorf("initializing storage root: %w", err)
	}
	return nil
}

// Resolve resolves a token to a file or directory.
func (s *Service) Resolve(ctx context.Context, tok Token) (*ResolvedEntry, error) {
	return s.resolver.Resolve(ctx, tok)
}

// ListFiles returns the files owned by owner.
func (s *Service) ListFiles(ctx context.Context, owner Principal) ([]*model.File, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// Upload stores r at targetPath on behalf of owner.
func (s *Service) Upload(ctx context.Context, owner Principal, targetPath string, r io.Reader) (*model.File, error) {
	return s.repo.CreateOrOverwrite(ctx, owner, r, targetPath)
}

// Download opens the file a token names. Directories cannot be downloaded
// without a codec.
func (s *Service) Download(ctx context.Context, tok Token) (*Download, error) {
	entry, err := s.resolver.Resolve(ctx, tok)
	if err != nil {
		return nil, err
	}
	if entry.Kind == EntryDirectory {
		return nil, fmt.Errorf("%w: %s is a directory, request a compression type", ErrNotDownloadable, entry.Path)
	}
	if !entry.Downloadable() {
		return nil, fmt.Errorf("%w: %s", ErrNotDownloadable, entry.Path)
	}

	p, err := s.resolveOnDisk(entry)
	if err != nil {
		return nil, err
	}
	content, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, storageErr("open", entry.Path, err)
	}

	s.logger.Debug("serving file", "path", entry.Path)
	return &Download{
		Filename:  entry.File.Name,
		MediaType: mediaTypeFor(entry.File.Name),
		Size:      p.Info().Size(),
		ModTime:   p.Info().ModTime(),
		Content:   content,
	}, nil
}

// DownloadArchive builds an archive of the file or directory a token names.
// The codec is checked before anything is looked up.
func (s *Service) DownloadArchive(ctx context.Context, tok Token, codecName string) (*Download, error) {
	codec, err := ParseCodec(codecName)
	if err != nil {
		return nil, err
	}

	entry, err := s.resolver.Resolve(ctx, tok)
	if err != nil {
		return nil, err
	}
	if !entry.Downloadable() {
		return nil, fmt.Errorf("%w: %s", ErrNotDownloadable, entry.Path)
	}

	p, err := s.resolveOnDisk(entry)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now()
	archive, err := s.archiver.BuildArchive(ctx, p, codec)
	if err != nil {
		return nil, fmt.Errorf("building %s archive of %s: %w", codec, entry.Path, err)
	}
	s.metrics.ArchiveBuilt(codec.String(), len(archive.Data), s.clock.Now().Sub(start))
	s.logger.Info("archive built", "path", entry.Path, "codec", codec.String(), "entries", archive.Entries, "bytes", len(archive.Data))

	return &Download{
		Filename:  archive.Filename,
		MediaType: archive.MediaType,
		Size:      int64(len(archive.Data)),
		ModTime:   start,
		Content:   newBytesContent(archive.Data),
	}, nil
}

// Ping measures a store round-trip and a cache round-trip.
func (s *Service) Ping(ctx context.Context) (*PingResult, error) {
	start := time.Now()
	if err := s.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	result := &PingResult{Database: time.Since(start)}

	start = time.Now()
	if err := s.cache.Ping(ctx); err != nil {
		s.logger.Warn("cache ping failed", "error", err)
		result.Cache = -1
	} else {
		result.Cache = time.Since(start)
	}
	return result, nil
}

func (s *Service) resolveOnDisk(entry *ResolvedEntry) (*Path, error) {
	p, err := s.fsmgr.Resolve(entry.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("metadata entry missing on disk", "path", entry.Path, "kind", entry.Kind.String())
		}
		return nil, storageErr("stat", entry.Path, err)
	}
	return p, nil
}

func mediaTypeFor(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
