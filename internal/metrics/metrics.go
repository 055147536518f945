// Package metrics holds the Prometheus counters recorded while crawling.
//
// All recording methods are nil-safe so library code can take an optional
// *Crawl without guarding every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catwalk"

// Lookup results recorded by the identity resolver.
const (
	LookupHit      = "hit"
	LookupResolved = "resolved"
	LookupMissing  = "missing"
)

// Crawl groups the counters for one crawl session.
type Crawl struct {
	// Requests counts API round-trips.
	// Labels: generator (allcategories, categorymembers), status (ok, error)
	Requests *prometheus.CounterVec

	// Snapshots counts completed batches handed to the caller.
	Snapshots prometheus.Counter

	// Members counts member pages across all emitted snapshots.
	Members prometheus.Counter

	// Lookups counts identity resolutions.
	// Labels: result (hit, resolved, missing)
	Lookups *prometheus.CounterVec

	// Upserts counts snapshots committed to the membership store.
	// Labels: status (ok, error)
	Upserts *prometheus.CounterVec
}

// NewCrawl registers the crawl counters with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewCrawl(reg prometheus.Registerer) *Crawl {
	f := promauto.With(reg)
	return &Crawl{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Remote API requests by generator and status",
		}, []string{"generator", "status"}),
		Snapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Completed batches emitted by the category walker",
		}),
		Members: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_total",
			Help:      "Member pages contained in emitted snapshots",
		}),
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_lookups_total",
			Help:      "Category name resolutions by result",
		}, []string{"result"}),
		Upserts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_upserts_total",
			Help:      "Snapshot upserts into the membership store by status",
		}, []string{"status"}),
	}
}

// ObserveRequest records one API round-trip.
func (m *Crawl) ObserveRequest(generator string, err error) {
	if m == nil {
		return
	}
	if generator == "" {
		generator = "none"
	}
	m.Requests.WithLabelValues(generator, status(err)).Inc()
}

// ObserveSnapshot records an emitted snapshot of n members.
func (m *Crawl) ObserveSnapshot(n int) {
	if m == nil {
		return
	}
	m.Snapshots.Inc()
	m.Members.Add(float64(n))
}

// ObserveLookup records an identity resolution outcome.
func (m *Crawl) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(result).Inc()
}

// ObserveUpsert records a snapshot upsert.
func (m *Crawl) ObserveUpsert(err error) {
	if m == nil {
		return
	}
	m.Upserts.WithLabelValues(status(err)).Inc()
}

// WriteTextfile writes everything gathered by g in the text exposition
// format, for pickup by a node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
