package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allthetropes/catwalk/internal/db"
)

// isolate runs the test in an empty directory with no CATWALK_CONFIG.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CATWALK_CONFIG", "")
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "https", cfg.Endpoint.Scheme)
	assert.Equal(t, "allthetropes.org", cfg.Endpoint.Host)
	assert.Equal(t, "Trope", cfg.Crawl.Category)
	assert.Equal(t, 50, cfg.Crawl.BatchLimit)
	assert.Equal(t, 20, cfg.Crawl.FanoutLimit)
	assert.Equal(t, "Site Maintenance", cfg.Crawl.Exclude)
	assert.Equal(t, 10, cfg.Hierarchy.MinRootFanout)
	assert.Equal(t, 100, cfg.Hierarchy.NodeBudget)
	assert.Equal(t, db.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, string(db.KeepFirst), cfg.Database.TitlePolicy)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, DefaultFile), `
crawl:
  category: Narrative Devices
  gcmlimit: 200
hierarchy:
  node_budget: 500
`)

	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "Narrative Devices", cfg.Crawl.Category)
	assert.Equal(t, 200, cfg.Crawl.BatchLimit)
	assert.Equal(t, 20, cfg.Crawl.FanoutLimit, "unset keys keep defaults")
	assert.Equal(t, 500, cfg.Hierarchy.NodeBudget)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `
endpoint:
  host: wiki.example.org
client:
  timeout: 5s
  rate: 2
crawl:
  exclude: Hidden
`)
	t.Setenv("CATWALK_CONFIG", path)
	t.Setenv("CATWALK_HOST", "mirror.example.org")
	t.Setenv("CATWALK_MAX_MEMBERS", "1000")
	t.Setenv("CATWALK_HTTP_TIMEOUT", "90s")
	t.Setenv("CATWALK_EXCLUDE", "")

	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.org", cfg.Endpoint.Host)
	assert.Equal(t, 1000, cfg.Crawl.MaxMembers)
	assert.Equal(t, 90*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 2.0, cfg.Client.Rate)
	assert.Empty(t, cfg.Crawl.Exclude, "an empty variable disables exclusion")
}

func TestLoad_ExplicitPathWins(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, DefaultFile), "crawl:\n  category: FromDefault\n")
	other := filepath.Join(dir, "other.yaml")
	writeFile(t, other, "crawl:\n  category: FromFlag\n")
	t.Setenv("CATWALK_CONFIG", filepath.Join(dir, DefaultFile))

	cfg, err := load(other)
	require.NoError(t, err)
	assert.Equal(t, "FromFlag", cfg.Crawl.Category)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "crawl: [unclosed\n")

	_, err := load(path)
	assert.ErrorContains(t, err, "parsing")
}

func TestLoad_BadEnvValues(t *testing.T) {
	isolate(t)
	t.Setenv("CATWALK_GCMLIMIT", "lots")
	t.Setenv("CATWALK_RATE", "fast")

	_, err := load("")
	require.Error(t, err)
	assert.ErrorContains(t, err, "CATWALK_GCMLIMIT")
	assert.ErrorContains(t, err, "CATWALK_RATE")
}

func TestLoad_PostgresAlias(t *testing.T) {
	isolate(t)
	t.Setenv("CATWALK_DB_DRIVER", "postgres")
	t.Setenv("CATWALK_DB_DSN", "postgres://u@localhost/tropes")

	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, db.DriverPostgres, cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"scheme", func(c *Config) { c.Endpoint.Scheme = "ftp" }, "scheme"},
		{"host", func(c *Config) { c.Endpoint.Host = "" }, "host"},
		{"maxlag", func(c *Config) { c.Client.MaxLag = -1 }, "maxlag"},
		{"timeout", func(c *Config) { c.Client.Timeout = 0 }, "timeout"},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }, "driver"},
		{"postgres dsn", func(c *Config) { c.Database.Driver = "pgx" }, "dsn"},
		{"title policy", func(c *Config) { c.Database.TitlePolicy = "newest" }, "newest"},
		{"limits", func(c *Config) { c.Crawl.BatchLimit = -5 }, "gcmlimit"},
		{"retries", func(c *Config) { c.Crawl.Retries = -1 }, "retries"},
		{"budget", func(c *Config) { c.Hierarchy.NodeBudget = 0 }, "budget"},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }, "chatty"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	require.NoError(t, Default().Validate())
}
