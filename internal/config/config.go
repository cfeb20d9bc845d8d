package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for filestore.
type Config struct {
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir" validate:"required"`
	LogLevel   string           `toml:"log_level" validate:"oneof=debug info warn error"`
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Database   DatabaseConfig   `toml:"database"`
	Cache      CacheConfig      `toml:"cache"`
	Staging    StagingConfig    `toml:"staging"`
	Auth       AuthConfig       `toml:"auth"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Vaults     []VaultConfig    `toml:"vaults" validate:"dive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string   `toml:"address" validate:"required"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// StorageConfig locates the storage root. Ignore patterns hide names from
// directory archives; patterns without '/' match base names. IgnoreFile
// holds more patterns, one per line, and must live outside Root.
type StorageConfig struct {
	Root       string   `toml:"root" validate:"required"`
	Ignore     []string `toml:"ignore"`
	IgnoreFile string   `toml:"ignore_file,omitempty"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// CacheConfig represents configuration for the metadata cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type          string   `toml:"type" validate:"oneof=badger memory none"`
	Dir           string   `toml:"dir,omitempty"`       // badger only; empty with in_memory
	InMemory      bool     `toml:"in_memory,omitempty"` // badger only
	MaxCost       int64    `toml:"max_cost,omitempty" validate:"gte=0"`
	ListingTTL    Duration `toml:"listing_ttl"`
	ResolutionTTL Duration `toml:"resolution_ttl"`
}

// StagingConfig limits upload staging.
type StagingConfig struct {
	MaxSize int64 `toml:"max_size" validate:"gt=0"` // largest accepted upload in bytes
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	Secret             string       `toml:"secret" validate:"required,min=16"`
	TokenExpireMinutes int          `toml:"token_expire_minutes" validate:"gt=0"`
	Argon2             Argon2Config `toml:"argon2"`
}

// Argon2Config tunes password hashing.
type Argon2Config struct {
	MemoryKiB   uint32 `toml:"memory_kib" validate:"gt=0"`
	Iterations  uint32 `toml:"iterations" validate:"gt=0"`
	Parallelism uint8  `toml:"parallelism" validate:"gt=0"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// VaultConfig represents configuration for a snapshot vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type" validate:"oneof=memory s3 filesystem"`
	Name string `toml:"name" validate:"required"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty" validate:"required_if=Type filesystem"`
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"oneof=age none"`
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// SnapshotConfig controls automatic snapshots.
type SnapshotConfig struct {
	OnShutdown bool `toml:"on_shutdown"`
}

// Duration is a time.Duration written as a string like "30s" in TOML.
type Duration struct {
	time.Duration
}

// Seconds builds a Duration.
func Seconds(n int) Duration {
	return Duration{time.Duration(n) * time.Second}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a Config rooted at baseDir with every default applied.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Cache: CacheConfig{
			Type: "badger",
			Dir:  filepath.Join(baseDir, "cache"),
		},
		Encryption: EncryptionConfig{
			Type: "none",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.LogDir == "" && cfg.BaseDir != "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout.Duration == 0 {
		cfg.Server.ReadTimeout = Seconds(60)
	}
	if cfg.Server.WriteTimeout.Duration == 0 {
		cfg.Server.WriteTimeout = Seconds(300)
	}
	if cfg.Server.ShutdownTimeout.Duration == 0 {
		cfg.Server.ShutdownTimeout = Seconds(10)
	}

	if cfg.Storage.Root == "" && cfg.BaseDir != "" {
		cfg.Storage.Root = filepath.Join(cfg.BaseDir, "files")
	}
	if cfg.Storage.IgnoreFile == "" && cfg.BaseDir != "" {
		cfg.Storage.IgnoreFile = filepath.Join(cfg.BaseDir, "ignore")
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = "memory"
	}
	if cfg.Cache.MaxCost == 0 {
		cfg.Cache.MaxCost = 64 << 20
	}
	if cfg.Cache.ListingTTL.Duration == 0 {
		cfg.Cache.ListingTTL = Seconds(30)
	}
	if cfg.Cache.ResolutionTTL.Duration == 0 {
		cfg.Cache.ResolutionTTL = Seconds(3600)
	}

	if cfg.Staging.MaxSize == 0 {
		cfg.Staging.MaxSize = 1 << 30
	}

	if cfg.Auth.TokenExpireMinutes == 0 {
		cfg.Auth.TokenExpireMinutes = 60
	}
	if cfg.Auth.Argon2.MemoryKiB == 0 {
		cfg.Auth.Argon2.MemoryKiB = 64 * 1024
	}
	if cfg.Auth.Argon2.Iterations == 0 {
		cfg.Auth.Argon2.Iterations = 3
	}
	if cfg.Auth.Argon2.Parallelism == 0 {
		cfg.Auth.Argon2.Parallelism = 4
	}

	if cfg.Encryption.Type == "" {
		cfg.Encryption.Type = "none"
	}
	if cfg.Encryption.PublicKeyPath == "" && cfg.BaseDir != "" {
		cfg.Encryption.PublicKeyPath = filepath.Join(cfg.BaseDir, "keys", "snapshot.pub")
	}
	if cfg.Encryption.PrivateKeyPath == "" && cfg.BaseDir != "" {
		cfg.Encryption.PrivateKeyPath = filepath.Join(cfg.BaseDir, "keys", "snapshot.key")
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold the token secret, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
