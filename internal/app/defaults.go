package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FILESTORE_CONFIG_PATH: config file location (default: $XDG_CONFIG_HOME/filestore.toml)
//   - FILESTORE_HOME: base directory for data (default: $XDG_DATA_HOME/filestore)
//
// Unset XDG variables fall back to ~/.config and ~/.local/share.
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("FILESTORE_CONFIG_PATH"); path != "" {
		return path, nil
	}
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "filestore.toml"), nil
}

// getBaseDir holds the database, cache, uploaded files, keys and logs.
func getBaseDir() (string, error) {
	if path := os.Getenv("FILESTORE_HOME"); path != "" {
		return path, nil
	}
	dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "filestore"), nil
}

// xdgDir returns $env when it is an absolute path, else ~/fallback.
func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, fallback), nil
}
