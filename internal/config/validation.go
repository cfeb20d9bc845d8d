package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if !filepath.IsAbs(cfg.Storage.Root) {
		return fmt.Errorf("storage.root: must be an absolute path, got %q", cfg.Storage.Root)
	}
	if f := cfg.Storage.IgnoreFile; f != "" {
		if !filepath.IsAbs(f) {
			return fmt.Errorf("storage.ignore_file: must be an absolute path, got %q", f)
		}
		if rel, err := filepath.Rel(cfg.Storage.Root, f); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("storage.ignore_file: must be outside storage.root, got %q", f)
		}
	}

	names := make(map[string]bool)
	for i, v := range cfg.Vaults {
		if names[v.Name] {
			return fmt.Errorf("vaults[%d]: duplicate vault name %q", i, v.Name)
		}
		names[v.Name] = true
	}

	if cfg.Cache.Type == "badger" && !cfg.Cache.InMemory && cfg.Cache.Dir == "" {
		return fmt.Errorf("cache.dir: required for badger cache unless in_memory is set")
	}

	if cfg.Snapshot.OnShutdown && len(cfg.Vaults) == 0 {
		return fmt.Errorf("snapshot.on_shutdown: requires at least one vault")
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s: is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", field, fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
