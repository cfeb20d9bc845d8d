package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filestore/internal/app"
	"filestore/internal/auth"
	"filestore/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file from the default location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a FilestoreApp. The caller must defer a.Close().
func newApp(ctx context.Context, opts app.Options) (*app.FilestoreApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewFilestoreApp(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "filestore",
	Short:        "Multi-user file storage server",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, app.Options{Migrate: migrate})
		if err != nil {
			return err
		}

		serveErr := a.Serve(ctx)
		if err := a.Close(); err != nil && serveErr == nil {
			return err
		}
		return serveErr
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := app.MigrationStatus(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("Current: %d\n", st.Current)
		fmt.Printf("Latest:  %d\n", st.Latest)
		switch {
		case st.Dirty:
			fmt.Println("Status:  dirty (a migration failed part way)")
		case st.UpToDate():
			fmt.Println("Status:  up to date")
		default:
			fmt.Println("Status:  pending (run 'filestore migrate up')")
		}
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptSecret("Password", true)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.RegisterUser(cmd.Context(), args[0], password)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Printf("Created user %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage metadata snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a database snapshot in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.CreateSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Printf("Stored snapshot %s\n", name)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		names, err := app.ListSnapshots(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No snapshots stored.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore DEST",
	Short: "Write a snapshot to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var passphrase string
		if cfg.Encryption.Type == "age" {
			passphrase, err = promptSecret("Passphrase", false)
			if err != nil {
				return err
			}
		}

		restored, err := app.RestoreSnapshot(cmd.Context(), cfg, name, passphrase, args[0])
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored snapshot %s to %s\n", restored, args[0])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Encryption.Type != "age" {
			return fmt.Errorf("encryption type is %q: set type = \"age\" under [encryption] first", cfg.Encryption.Type)
		}

		passphrase, err := promptSecret("Passphrase", true)
		if err != nil {
			return err
		}
		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		secret, err := auth.NewSecret(32)
		if err != nil {
			return fmt.Errorf("generating token secret: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.Auth.Secret = secret

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Run 'filestore migrate up' before the first 'filestore serve'.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Address:      %s\n", cfg.Server.Address)
		fmt.Printf("Storage Root: %s\n", cfg.Storage.Root)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Cache:        %s\n", cfg.Cache.Type)
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:        %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotRestoreCmd.Flags().StringP("name", "n", "", "Snapshot to restore (default: newest)")
	rootCmd.AddCommand(snapshotCmd)

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
