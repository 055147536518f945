// Package config loads catwalk settings with priority: environment > file >
// defaults. A .env file in the working directory is read into the
// environment first, without overriding variables that are already set.
//
// Recognized environment variables:
//
//	CATWALK_CONFIG            path of the YAML file
//	CATWALK_SCHEME, CATWALK_HOST, CATWALK_API_PATH
//	CATWALK_MAXLAG, CATWALK_USER_AGENT, CATWALK_RATE, CATWALK_HTTP_TIMEOUT
//	CATWALK_DB_DRIVER, CATWALK_DB_DSN, CATWALK_TITLE_POLICY
//	CATWALK_CATEGORY, CATWALK_GCMLIMIT, CATWALK_CLLIMIT, CATWALK_MAX_MEMBERS
//	CATWALK_EXCLUDE, CATWALK_RETRIES
//	CATWALK_MIN_ROOT_FANOUT, CATWALK_NODE_BUDGET
//	CATWALK_LOG_LEVEL, CATWALK_LOG_FORMAT, CATWALK_METRICS_FILE
//
// CATWALK_DB (the SQLite path) is handled by the CLI's database discovery.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"allthetropes/catwalk/internal/db"
	"allthetropes/catwalk/internal/logging"
	"allthetropes/catwalk/internal/wiki"
)

// DefaultFile is read when no path is given and it exists in the working directory.
const DefaultFile = "catwalk.yaml"

// Config is the full set of settings.
type Config struct {
	Endpoint  wiki.Endpoint   `yaml:"endpoint"`
	Client    ClientConfig    `yaml:"client"`
	Database  DatabaseConfig  `yaml:"database"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Hierarchy HierarchyConfig `yaml:"hierarchy"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ClientConfig tunes requests to the remote API.
type ClientConfig struct {
	MaxLag    int    `yaml:"maxlag"`
	UserAgent string `yaml:"user_agent"`
	// Rate is the maximum requests per second; 0 disables pacing.
	Rate    float64       `yaml:"rate"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig selects the membership store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is required for postgres. For sqlite it is a file path and is
	// normally left empty so the CLI can discover tropes.db.
	DSN         string `yaml:"dsn"`
	TitlePolicy string `yaml:"title_policy"`
}

// CrawlConfig holds walker defaults.
type CrawlConfig struct {
	Category    string `yaml:"category"`
	BatchLimit  int    `yaml:"gcmlimit"`
	FanoutLimit int    `yaml:"cllimit"`
	MaxMembers  int    `yaml:"max_members"`
	// Exclude names the category whose members are dropped from parent
	// sets. Empty disables exclusion.
	Exclude string `yaml:"exclude"`
	Retries int    `yaml:"retries"`
}

// HierarchyConfig holds path report defaults.
type HierarchyConfig struct {
	MinRootFanout int `yaml:"min_root_fanout"`
	NodeBudget    int `yaml:"node_budget"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the optional Prometheus textfile.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Endpoint: wiki.DefaultEndpoint(),
		Client: ClientConfig{
			MaxLag:    wiki.DefaultMaxLag,
			UserAgent: wiki.DefaultUserAgent,
			Timeout:   wiki.DefaultTimeout,
		},
		Database: DatabaseConfig{
			Driver:      db.DriverSQLite,
			TitlePolicy: string(db.KeepFirst),
		},
		Crawl: CrawlConfig{
			Category:    "Trope",
			BatchLimit:  50,
			FanoutLimit: 20,
			Exclude:     "Site Maintenance",
		},
		Hierarchy: HierarchyConfig{
			MinRootFanout: 10,
			NodeBudget:    100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load reads .env, then the YAML file at path (or DefaultFile if path is
// empty and the file exists), then CATWALK_* overrides, and validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return load(path)
}

func load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CATWALK_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// loadEnv applies CATWALK_* overrides. Unparseable values are errors.
func loadEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = i
		}
	}

	str("CATWALK_SCHEME", &cfg.Endpoint.Scheme)
	str("CATWALK_HOST", &cfg.Endpoint.Host)
	str("CATWALK_API_PATH", &cfg.Endpoint.Path)

	num("CATWALK_MAXLAG", &cfg.Client.MaxLag)
	str("CATWALK_USER_AGENT", &cfg.Client.UserAgent)
	if v := strings.TrimSpace(os.Getenv("CATWALK_RATE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CATWALK_RATE: %w", err))
		} else {
			cfg.Client.Rate = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("CATWALK_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CATWALK_HTTP_TIMEOUT: %w", err))
		} else {
			cfg.Client.Timeout = d
		}
	}

	str("CATWALK_DB_DRIVER", &cfg.Database.Driver)
	str("CATWALK_DB_DSN", &cfg.Database.DSN)
	str("CATWALK_TITLE_POLICY", &cfg.Database.TitlePolicy)

	str("CATWALK_CATEGORY", &cfg.Crawl.Category)
	num("CATWALK_GCMLIMIT", &cfg.Crawl.BatchLimit)
	num("CATWALK_CLLIMIT", &cfg.Crawl.FanoutLimit)
	num("CATWALK_MAX_MEMBERS", &cfg.Crawl.MaxMembers)
	str("CATWALK_EXCLUDE", &cfg.Crawl.Exclude)
	num("CATWALK_RETRIES", &cfg.Crawl.Retries)

	num("CATWALK_MIN_ROOT_FANOUT", &cfg.Hierarchy.MinRootFanout)
	num("CATWALK_NODE_BUDGET", &cfg.Hierarchy.NodeBudget)

	str("CATWALK_LOG_LEVEL", &cfg.Log.Level)
	str("CATWALK_LOG_FORMAT", &cfg.Log.Format)
	str("CATWALK_METRICS_FILE", &cfg.Metrics.Textfile)

	return errors.Join(errs...)
}

// Validate checks ranges and enumerations and normalizes the driver name.
func (c *Config) Validate() error {
	var errs []error

	switch c.Endpoint.Scheme {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("endpoint scheme %q: want http or https", c.Endpoint.Scheme))
	}
	if c.Endpoint.Host == "" {
		errs = append(errs, errors.New("endpoint host is empty"))
	}
	if c.Client.MaxLag < 0 {
		errs = append(errs, fmt.Errorf("maxlag %d is negative", c.Client.MaxLag))
	}
	if c.Client.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate %g is negative", c.Client.Rate))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout %s must be positive", c.Client.Timeout))
	}

	switch c.Database.Driver {
	case db.DriverSQLite:
	case "postgres", db.DriverPostgres:
		c.Database.Driver = db.DriverPostgres
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("postgres driver needs a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("database driver %q: want sqlite or postgres", c.Database.Driver))
	}
	if _, err := db.ParseTitlePolicy(c.Database.TitlePolicy); err != nil {
		errs = append(errs, err)
	}

	if c.Crawl.BatchLimit < 0 || c.Crawl.FanoutLimit < 0 {
		errs = append(errs, errors.New("gcmlimit and cllimit must not be negative"))
	}
	if c.Crawl.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries %d is negative", c.Crawl.Retries))
	}
	if c.Hierarchy.NodeBudget <= 0 {
		errs = append(errs, fmt.Errorf("node budget %d must be positive", c.Hierarchy.NodeBudget))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log format %q: want %s or %s", c.Log.Format, logging.FormatText, logging.FormatJSON))
	}

	return errors.Join(errs...)
}
