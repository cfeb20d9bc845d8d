package encryption

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"

	"filestore/internal/config"
	"filestore/internal/filestore"
)

// AgeEncryptor protects database snapshots with filippo.io/age X25519 keys.
// The public key is stored in plaintext so snapshots can be taken unattended.
// The private key is armored and sealed with an operator passphrase through
// age's scrypt recipient; it is only needed for restore.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ filestore.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a key pair. Existing keys are never replaced: snapshots
// encrypted to them would become unrecoverable. The public key is written
// last, so IsConfigured only reports true for a complete pair.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	if e.IsConfigured() {
		return fmt.Errorf("snapshot keys already exist at %s", e.publicKeyPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	sealer, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	err = writeKeyFile(e.privateKeyPath, 0600, func(w io.Writer) error {
		aw := armor.NewWriter(w)
		sw, err := age.Encrypt(aw, sealer)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(sw, identity.String()+"\n"); err != nil {
			return err
		}
		if err := sw.Close(); err != nil {
			return err
		}
		return aw.Close()
	})
	if err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	created := time.Now().UTC().Format(time.RFC3339)
	err = writeKeyFile(e.publicKeyPath, 0644, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "# filestore snapshot key, created %s\n%s\n", created, identity.Recipient())
		return err
	})
	if err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// writeKeyFile writes through a temp file in the target directory and
// renames it into place.
func writeKeyFile(path string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-key-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Encrypt reads plaintext from r and writes age-encrypted ciphertext to w
// using the stored public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock opens the private key with passphrase. A wrong passphrase fails
// with ErrUnauthorized.
func (e *AgeEncryptor) Unlock(passphrase string) (filestore.DecryptionContext, error) {
	f, err := os.Open(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("opening private key: %w", err)
	}
	defer f.Close()

	opener, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	keyReader, err := age.Decrypt(armor.NewReader(f), opener)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, fmt.Errorf("%w: wrong passphrase", filestore.ErrUnauthorized)
		}
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	identities, err := age.ParseIdentities(keyReader)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &AgeDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.privateKeyPath, e.publicKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Extension marks age-encrypted snapshot names.
func (e *AgeEncryptor) Extension() string {
	return ".age"
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	f, err := os.Open(e.publicKeyPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", e.publicKeyPath, err)
	}
	return recipients[0], nil
}

// AgeDecryptionContext holds an unlocked age identity in memory only.
type AgeDecryptionContext struct {
	identity age.Identity
}

var _ filestore.DecryptionContext = (*AgeDecryptionContext)(nil)

// Decrypt reads age-encrypted ciphertext from r and writes plaintext to w.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return nil
}
