package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filestore/internal/config"
	"filestore/internal/encryption"
	"filestore/internal/filestore"
	"filestore/internal/vault"
)

// Fixed-width so names sort in the order the snapshots were taken.
const snapshotTimeFormat = "20060102T150405.000000000Z"

// snapshotName names a database snapshot taken at the current time. A time
// already used by a snapshot in the vault moves on by a nanosecond, so a
// stored snapshot is never replaced.
func (a *FilestoreApp) snapshotName() (string, error) {
	existing, err := a.vault.ListSnapshots()
	if err != nil {
		return "", fmt.Errorf("listing snapshots: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		stamp, _, _ := strings.Cut(n, ".db")
		taken[stamp] = true
	}

	t := a.clock.Now().UTC()
	for taken[t.Format(snapshotTimeFormat)] {
		t = t.Add(time.Nanosecond)
	}
	return t.Format(snapshotTimeFormat) + ".db" + a.encryptor.Extension(), nil
}

// CreateSnapshot copies the metadata database, encrypts it when encryption is
// configured and stores it in the first vault. It returns the snapshot name.
func (a *FilestoreApp) CreateSnapshot(ctx context.Context) (string, error) {
	if a.vault == nil {
		return "", fmt.Errorf("no vaults configured")
	}
	if !a.encryptor.IsConfigured() {
		return "", fmt.Errorf("encryption keys not found: run 'filestore keys init' first")
	}

	tmpDir, err := os.MkdirTemp("", "filestore-snapshot-*")
	if err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "snapshot.db")
	if err := a.db.BackupTo(dbPath); err != nil {
		return "", fmt.Errorf("copying database: %w", err)
	}

	uploadPath := dbPath
	if ext := a.encryptor.Extension(); ext != "" {
		uploadPath = dbPath + ext
		if err := encryptFile(a.encryptor, dbPath, uploadPath); err != nil {
			return "", err
		}
	}

	a.snapshotMu.Lock()
	defer a.snapshotMu.Unlock()

	name, err := a.snapshotName()
	if err != nil {
		return "", err
	}
	if err := putFile(a.vault, name, uploadPath); err != nil {
		return "", err
	}
	a.logger.Info("snapshot stored", "name", name)
	return name, nil
}

func encryptFile(enc filestore.Encryptor, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening database copy: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return nil
}

func putFile(v filestore.Vault, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	if err := v.PutSnapshot(name, f, info.Size()); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	return nil
}

// ListSnapshots returns the snapshots held by the first configured vault.
func ListSnapshots(ctx context.Context, cfg *config.Config) ([]string, error) {
	v, err := firstVault(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return v.ListSnapshots()
}

// RestoreSnapshot writes snapshot name (the newest one when name is empty)
// from the first configured vault to dest, decrypting it with passphrase
// when it was encrypted. dest must not exist. It returns the restored name.
func RestoreSnapshot(ctx context.Context, cfg *config.Config, name, passphrase, dest string) (string, error) {
	v, err := firstVault(ctx, cfg)
	if err != nil {
		return "", err
	}

	if name == "" {
		names, err := v.ListSnapshots()
		if err != nil {
			return "", fmt.Errorf("listing snapshots: %w", err)
		}
		if len(names) == 0 {
			return "", fmt.Errorf("vault holds no snapshots")
		}
		name = names[len(names)-1]
	}

	var dec filestore.DecryptionContext
	if !strings.HasSuffix(name, ".db") {
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return "", fmt.Errorf("creating encryptor: %w", err)
		}
		if ext := enc.Extension(); ext == "" || !strings.HasSuffix(name, ext) {
			return "", fmt.Errorf("snapshot %s is encrypted but the configured encryption cannot read it", name)
		}
		dec, err = enc.Unlock(passphrase)
		if err != nil {
			return "", fmt.Errorf("unlocking private key: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}

	if err := fetchSnapshot(v, name, dec, out); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	return name, nil
}

// fetchSnapshot downloads name to a temporary file first, since decryption
// must not start on a partial download.
func fetchSnapshot(v filestore.Vault, name string, dec filestore.DecryptionContext, w io.Writer) error {
	if dec == nil {
		if err := v.GetSnapshot(name, w); err != nil {
			return fmt.Errorf("downloading snapshot %s: %w", name, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp("", "filestore-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := v.GetSnapshot(name, tmp); err != nil {
		return fmt.Errorf("downloading snapshot %s: %w", name, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding snapshot: %w", err)
	}
	if err := dec.Decrypt(tmp, w); err != nil {
		return fmt.Errorf("decrypting snapshot %s: %w", name, err)
	}
	return nil
}

// SetupKeys generates the snapshot key pair protected by passphrase.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	return enc.Setup(passphrase)
}

func firstVault(ctx context.Context, cfg *config.Config) (filestore.Vault, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	return v, nil
}
