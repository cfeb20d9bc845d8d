// Package app builds the file store from configuration and runs its
// long-lived operations for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"filestore/internal/archive"
	"filestore/internal/auth"
	"filestore/internal/cache"
	"filestore/internal/config"
	"filestore/internal/database"
	"filestore/internal/database/migrations"
	"filestore/internal/encryption"
	"filestore/internal/filestore"
	"filestore/internal/fs"
	"filestore/internal/httpapi"
	"filestore/internal/metrics"
	"filestore/internal/model"
	"filestore/internal/staging"
	"filestore/internal/vault"
)

const runIDFormat = "20060102T150405Z"

// Options adjusts how NewFilestoreApp starts.
type Options struct {
	// Migrate applies pending schema migrations instead of refusing to start.
	Migrate bool
	// Clock defaults to the wall clock.
	Clock filestore.Clock
}

// FilestoreApp is the application layer between the CLI and the file store.
// It constructs all dependencies from config and closes them on Close.
type FilestoreApp struct {
	cfg       *config.Config
	db        filestore.Database
	cache     *filestore.CacheLayer
	files     *filestore.Service
	auth      *auth.Service
	metrics   *metrics.Metrics
	vault     filestore.Vault // nil when no vault is configured
	encryptor filestore.Encryptor
	clock     filestore.Clock
	logger    *slog.Logger
	logFile   *os.File

	snapshotMu sync.Mutex
}

type migrator interface {
	Migrate() error
}

// NewFilestoreApp creates a fully wired FilestoreApp from the given config.
// The caller must call Close when done.
func NewFilestoreApp(ctx context.Context, cfg *config.Config, opts Options) (*FilestoreApp, error) {
	clock := opts.Clock
	if clock == nil {
		clock = filestore.RealClock{}
	}

	runID := clock.Now().UTC().Format(runIDFormat)
	logger, logFile, err := newLogger(cfg.LogDir, runID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &FilestoreApp{cfg: cfg, clock: clock, logger: logger, logFile: logFile}

	if err := a.build(ctx, opts); err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

func (a *FilestoreApp) build(ctx context.Context, opts Options) error {
	cfg := a.cfg
	log := &slogAdapter{l: a.logger}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db

	if opts.Migrate {
		m, ok := db.(migrator)
		if !ok {
			return fmt.Errorf("database type %q cannot be migrated", cfg.Database.Type)
		}
		if err := m.Migrate(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}
	ignore, err := fs.LoadIgnoreMatcher(cfg.Storage.IgnoreFile, cfg.Storage.Ignore)
	if err != nil {
		return fmt.Errorf("loading ignore patterns: %w", err)
	}
	fsmgr, err := fs.NewOSFilesystemManager(cfg.Storage.Root, ignore)
	if err != nil {
		return fmt.Errorf("creating filesystem manager: %w", err)
	}

	a.metrics = metrics.New()

	backend, err := cache.NewCacheFromConfig(cfg.Cache)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	a.cache = filestore.NewCacheLayer(backend, cache.TTLFromConfig(cfg.Cache), log, a.metrics)

	idgen := filestore.UUIDGenerator{}
	a.files = filestore.NewService(filestore.ServiceDeps{
		Database:    db,
		Filesystem:  fsmgr,
		Staging:     staging.NewStagingAreaFromConfig(cfg.Staging, fsmgr),
		Cache:       a.cache,
		Archiver:    archive.NewEngine(fsmgr),
		Logger:      log,
		Metrics:     a.metrics,
		Clock:       a.clock,
		IDGenerator: idgen,
	})
	if err := a.files.Init(ctx); err != nil {
		return fmt.Errorf("initializing storage root: %w", err)
	}

	ttl := time.Duration(cfg.Auth.TokenExpireMinutes) * time.Minute
	tokens := auth.NewTokenIssuer(cfg.Auth.Secret, ttl, a.clock)
	a.auth = auth.NewService(db, auth.ParamsFromConfig(cfg.Auth.Argon2), tokens, a.clock, idgen, log)

	if len(cfg.Vaults) > 0 {
		v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			return fmt.Errorf("creating vault: %w", err)
		}
		a.vault = v
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	return nil
}

// Handler returns the HTTP API.
func (a *FilestoreApp) Handler() http.Handler {
	s := &httpapi.Server{
		Files:           a.files,
		Auth:            a.auth,
		Metrics:         a.metrics,
		Logger:          a.logger,
		MaxUploadBytes:  a.cfg.Staging.MaxSize,
		MetricsEndpoint: a.cfg.Metrics.Enabled,
	}
	return s.Handler()
}

// Serve listens on the configured address until ctx is cancelled.
func (a *FilestoreApp) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Server.Address, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves the HTTP API on ln until ctx is cancelled, then
// drains in-flight requests for at most the configured shutdown timeout.
func (a *FilestoreApp) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := httpapi.NewHTTPServer(a.cfg.Server, a.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// RegisterUser creates an account from the command line.
func (a *FilestoreApp) RegisterUser(ctx context.Context, username, password string) (*model.User, error) {
	return a.auth.Register(ctx, username, password)
}

// Ping reports database and cache round-trip times.
func (a *FilestoreApp) Ping(ctx context.Context) (*filestore.PingResult, error) {
	return a.files.Ping(ctx)
}

// Close takes a shutdown snapshot when configured, then closes all resources.
func (a *FilestoreApp) Close() error {
	var firstErr error
	if a.cfg.Snapshot.OnShutdown && a.vault != nil && a.db != nil {
		if _, err := a.CreateSnapshot(context.Background()); err != nil {
			firstErr = fmt.Errorf("shutdown snapshot: %w", err)
		}
	}
	if err := a.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *FilestoreApp) release() error {
	var firstErr error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			firstErr = fmt.Errorf("closing cache: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

type migrationStatuser interface {
	MigrationStatus() (migrations.Status, error)
}

// Migrate applies pending schema migrations to the configured database.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	m, ok := db.(migrator)
	if !ok {
		return fmt.Errorf("database type %q cannot be migrated", cfg.Database.Type)
	}
	return m.Migrate()
}

// MigrationStatus reports the schema version of the configured database.
func MigrationStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	s, ok := db.(migrationStatuser)
	if !ok {
		return migrations.Status{}, fmt.Errorf("database type %q has no migration status", cfg.Database.Type)
	}
	return s.MigrationStatus()
}
