package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawl_Observe(t *testing.T) {
	m := NewCrawl(prometheus.NewRegistry())

	m.ObserveRequest("categorymembers", nil)
	m.ObserveRequest("categorymembers", errors.New("boom"))
	m.ObserveRequest("", nil)
	m.ObserveSnapshot(50)
	m.ObserveSnapshot(7)
	m.ObserveLookup(LookupHit)
	m.ObserveLookup(LookupMissing)
	m.ObserveUpsert(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("categorymembers", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("categorymembers", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("none", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Snapshots))
	assert.Equal(t, 57.0, testutil.ToFloat64(m.Members))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues(LookupMissing)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Upserts.WithLabelValues("ok")))
}

func TestCrawl_NilSafe(t *testing.T) {
	var m *Crawl
	assert.NotPanics(t, func() {
		m.ObserveRequest("allcategories", nil)
		m.ObserveSnapshot(1)
		m.ObserveLookup(LookupResolved)
		m.ObserveUpsert(errors.New("x"))
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCrawl(reg)
	m.ObserveSnapshot(3)

	path := filepath.Join(t.TempDir(), "catwalk.prom")
	require.NoError(t, WriteTextfile(path, reg))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "catwalk_members_total 3")
}
