package encryption

import (
	"fmt"
	"io"

	"filestore/internal/filestore"
)

// NoneEncryptor stores snapshots as-is. Use it only when the vault itself
// is trusted, e.g. a local directory on the same host.
type NoneEncryptor struct{}

var _ filestore.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(passphrase string) error { return nil }
func (NoneEncryptor) IsConfigured() bool            { return true }
func (NoneEncryptor) Extension() string             { return "" }

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (NoneEncryptor) Unlock(passphrase string) (filestore.DecryptionContext, error) {
	return noneDecryptionContext{}, nil
}

type noneDecryptionContext struct{}

func (noneDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
