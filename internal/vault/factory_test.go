package vault

import (
	"context"
	"path/filepath"
	"testing"

	"filestore/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
		wantNil bool
	}{
		{
			name: "memory vault",
			cfg: config.VaultConfig{
				Type: "memory",
				Name: "test-memory",
			},
			wantErr: false,
			wantNil: false,
		},
		{
			name: "s3 vault without bucket",
			cfg: config.VaultConfig{
				Type: "s3",
				Name: "test-s3",
			},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "filesystem vault without root",
			cfg: config.VaultConfig{
				Type: "filesystem",
				Name: "test-fs",
			},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "unknown vault type",
			cfg: config.VaultConfig{
				Type: "unknown",
				Name: "test-unknown",
			},
			wantErr: true,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if (got == nil) != tt.wantNil {
				t.Errorf("NewVaultFromConfig() returned nil = %v, wantNil %v", got == nil, tt.wantNil)
			}

			// For successful cases, verify the vault works
			if !tt.wantErr && got != nil {
				if err := got.ValidateSetup(); err != nil {
					t.Errorf("ValidateSetup() error = %v", err)
				}
			}
		})
	}
}

func TestNewVaultFromConfig_Filesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	got, err := NewVaultFromConfig(context.Background(), config.VaultConfig{
		Type:        "filesystem",
		Name:        "local",
		FSVaultRoot: root,
	})
	if err != nil {
		t.Fatalf("NewVaultFromConfig() error = %v", err)
	}
	if _, ok := got.(*FileSystemVault); !ok {
		t.Fatalf("NewVaultFromConfig() = %T, want *FileSystemVault", got)
	}
	if err := got.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestNewVaultFromConfig_S3(t *testing.T) {
	got, err := NewVaultFromConfig(context.Background(), config.VaultConfig{
		Type:              "s3",
		Name:              "remote",
		S3Bucket:          "backups",
		S3Prefix:          "team",
		S3Region:          "us-east-1",
		S3Endpoint:        "http://localhost:9000",
		S3AccessKeyID:     "minio",
		S3SecretAccessKey: "minio-secret",
		S3UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("NewVaultFromConfig() error = %v", err)
	}
	v, ok := got.(*S3Vault)
	if !ok {
		t.Fatalf("NewVaultFromConfig() = %T, want *S3Vault", got)
	}
	if v.bucket != "backups" || v.prefix != "team/snapshots/" {
		t.Errorf("bucket = %q prefix = %q", v.bucket, v.prefix)
	}
}
