package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allthetropes/catwalk/internal/config"
	"allthetropes/catwalk/internal/db"
	"allthetropes/catwalk/internal/wiki"
)

// tinyWiki serves a two-category wiki: Trope contains the trope Foo and the
// subcategory Sub, and Sub contains Foo as well.
func tinyWiki(t *testing.T) *httptest.Server {
	t.Helper()
	categories := map[string]int64{"Trope": 1, "Sub": 6}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		resp := wiki.Response{BatchComplete: true}
		switch q.Get("generator") {
		case "allcategories":
			if id, ok := categories[q.Get("gacfrom")]; ok {
				resp.Query = &wiki.QueryResult{Pages: []wiki.PageResult{{PageID: id, NS: 14, Title: "Category:" + q.Get("gacfrom")}}}
			}
		case "categorymembers":
			if q.Get("gcmtitle") != "Category:Trope" {
				break
			}
			resp.Query = &wiki.QueryResult{Pages: []wiki.PageResult{
				{PageID: 5, Title: "Foo Fighter", Categories: []wiki.CategoryRef{{NS: 14, Title: "Category:Trope"}, {NS: 14, Title: "Category:Sub"}}},
				{PageID: 6, NS: 14, Title: "Category:Sub", Categories: []wiki.CategoryRef{{NS: 14, Title: "Category:Trope"}}},
			}}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupCLI points the CLI at srv and a fresh store in an empty directory.
func setupCLI(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	t.Setenv("CATWALK_CONFIG", "")
	t.Setenv("CATWALK_SCHEME", "http")
	t.Setenv("CATWALK_HOST", u.Host)
	t.Setenv("CATWALK_API_PATH", "/api.php")
	t.Setenv("CATWALK_DB", filepath.Join(dir, db.DefaultFilename))
	t.Setenv("CATWALK_LOG_LEVEL", "error")
	return dir
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute(), "catwalk %s", strings.Join(args, " "))
	return out.String()
}

func TestCLI_CrawlThenReport(t *testing.T) {
	dir := setupCLI(t, tinyWiki(t))
	metricsFile := filepath.Join(dir, "catwalk.prom")

	run(t, "crawl", "--no-exclude", "--metrics-file", metricsFile)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "catwalk_snapshots_total 1")

	t.Run("show members", func(t *testing.T) {
		var rows []map[string]any
		require.NoError(t, json.Unmarshal([]byte(run(t, "show", "members", "--json")), &rows))
		assert.Len(t, rows, 3)
	})

	t.Run("paths", func(t *testing.T) {
		out := run(t, "paths", "--min-root-fanout", "0", "--budget", "10", "--select", "$.rows[*].path")
		var paths []string
		require.NoError(t, json.Unmarshal([]byte(out), &paths))
		assert.Equal(t, []string{"Trope", "Trope=>Foo Fighter", "Trope->Sub", "Trope->Sub=>Foo Fighter"}, paths)
	})

	t.Run("ancestors", func(t *testing.T) {
		out := run(t, "ancestors", "--trope", "5", "--select", "$.rows[*].path")
		var paths []string
		require.NoError(t, json.Unmarshal([]byte(out), &paths))
		assert.ElementsMatch(t, []string{"Trope", "Sub", "Trope->Sub"}, paths)
	})

	t.Run("stats", func(t *testing.T) {
		var report map[string]any
		require.NoError(t, json.Unmarshal([]byte(run(t, "stats", "--json")), &report))
		assert.Equal(t, 2.0, report["categories"])
		assert.Equal(t, 1.0, report["tropes"])
		assert.Equal(t, 3.0, report["edges"])
	})

	t.Run("find", func(t *testing.T) {
		assert.Contains(t, run(t, "find", "fighter"), "Foo Fighter")
	})
}

func TestCLI_Lookup(t *testing.T) {
	setupCLI(t, tinyWiki(t))

	out := run(t, "lookup", "Category:Sub")
	assert.Equal(t, "6\tCategory:Sub\n", out)

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"lookup", "Nowhere"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, rootCmd.Execute(), "not found")
}

func TestDiscoverDB(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)
	t.Setenv("CATWALK_DB", "")
	resetFlags(rootCmd)
	cfg := config.Default()

	_, err := DiscoverDB(cfg, false)
	assert.Error(t, err, "nothing to discover")

	created, err := DiscoverDB(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, db.DefaultFilename, filepath.Base(created))

	store := filepath.Join(root, db.DefaultFilename)
	require.NoError(t, os.WriteFile(store, nil, 0o644))
	found, err := DiscoverDB(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(store), filepath.Base(found))
	assert.Equal(t, filepath.Base(root), filepath.Base(filepath.Dir(found)))

	cfg.Database.DSN = filepath.Join(root, "missing.db")
	_, err = DiscoverDB(cfg, false)
	assert.ErrorContains(t, err, "configured path")
}

func TestTruncTitle(t *testing.T) {
	assert.Equal(t, "short", truncTitle("short", 10))
	assert.Equal(t, "abc...", truncTitle("abcdef", 3))
	assert.Equal(t, "a...", truncTitle("aé", 2), "does not split a rune")
}

func TestWriteJSON_Select(t *testing.T) {
	var buf bytes.Buffer
	v := map[string]any{"rows": []map[string]any{{"path": "A"}, {"path": "A->B"}}}
	require.NoError(t, writeJSON(&buf, v, "$.rows[*].path"))

	var got []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"A", "A->B"}, got)

	assert.Error(t, writeJSON(&buf, v, "$.rows[["))
}
