package filestore

import "io"

// Encryptor protects snapshots at rest. Encryption needs only the public key;
// decryption needs the passphrase that unlocks the private key.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context that can decrypt
	// snapshots. Returns an error if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool

	// Extension is appended to snapshot names written with this encryptor.
	Extension() string
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
