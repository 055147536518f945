package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/config"
	"allthetropes/catwalk/internal/db"
	"allthetropes/catwalk/internal/logging"
)

var (
	dbPath     string
	dbDriver   string
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "catwalk",
	Short: "Crawl a wiki's category graph into a local membership store",
	Long: `catwalk walks the members of a wiki category through the MediaWiki API,
records every member with its parent categories, and reports on the resulting
category hierarchy.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite store (default: discover "+db.DefaultFilename+")")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "Store driver: sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig reads the config and applies the persistent flags that were set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbDriver != "" {
		cfg.Database.Driver = dbDriver
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, attrs ...slog.Attr) (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Attrs:  attrs,
	})
}

// DiscoverDB finds the SQLite store using priority: env > flag > config >
// walk-up > create. Only commands that write may create a new store.
func DiscoverDB(cfg *config.Config, create bool) (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("CATWALK_DB"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil || create {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil || create {
			return dbPath, nil
		}
		return "", fmt.Errorf("database not found at --db path: %s", dbPath)
	}

	// 3. Config file
	if cfg.Database.DSN != "" {
		if _, err := os.Stat(cfg.Database.DSN); err == nil || create {
			return cfg.Database.DSN, nil
		}
		return "", fmt.Errorf("database not found at configured path: %s", cfg.Database.DSN)
	}

	// 4. Walk up from CWD
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for dir := cwd; ; {
		candidate := filepath.Join(dir, db.DefaultFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// 5. New store in CWD
	if create {
		return filepath.Join(cwd, db.DefaultFilename), nil
	}
	return "", fmt.Errorf("no %s found (set CATWALK_DB, use --db, or run a crawl first)", db.DefaultFilename)
}

// OpenDatabase opens the configured store. SQLite paths go through
// DiscoverDB; other drivers use the configured DSN as is.
func OpenDatabase(cfg *config.Config, create bool, opts ...db.Option) (*db.DB, error) {
	policy, err := db.ParseTitlePolicy(cfg.Database.TitlePolicy)
	if err != nil {
		return nil, err
	}
	opts = append([]db.Option{db.WithTitlePolicy(policy)}, opts...)

	if cfg.Database.Driver != db.DriverSQLite {
		return db.Open(cfg.Database.Driver, cfg.Database.DSN, opts...)
	}
	path, err := DiscoverDB(cfg, create)
	if err != nil {
		return nil, err
	}
	return db.OpenDB(path, opts...)
}
