package wiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allthetropes/catwalk/internal/metrics"
)

// endpointFor points an Endpoint at a test server.
func endpointFor(t *testing.T, srv *httptest.Server) Endpoint {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return Endpoint{Scheme: u.Scheme, Host: u.Host, Path: "/w/api.php"}
}

func TestEndpointURL(t *testing.T) {
	e := DefaultEndpoint()
	params := url.Values{}
	params.Set("gacfrom", "Ending Tropes")

	got := e.URL(params)
	assert.Equal(t, "https://allthetropes.org/w/api.php/?gacfrom=Ending+Tropes", got)
}

func TestClientQuery_FixedFields(t *testing.T) {
	var got url.Values
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"batchcomplete":true,"query":{"pages":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(endpointFor(t, srv), WithMaxLag(5), WithUserAgent("catwalk-test"))
	params := url.Values{}
	params.Set("generator", "categorymembers")

	resp, err := c.Query(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, resp.BatchComplete)

	assert.Equal(t, "query", got.Get("action"))
	assert.Equal(t, "json", got.Get("format"))
	assert.Equal(t, "2", got.Get("formatversion"))
	assert.Equal(t, "5", got.Get("maxlag"))
	assert.Equal(t, "categorymembers", got.Get("generator"))
	assert.Equal(t, "catwalk-test", ua)

	// The caller's params are not mutated.
	assert.Empty(t, params.Get("action"))
}

func TestClientQuery_DecodesPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"continue": {"clcontinue": "63175|Ending_Tropes", "continue": "||"},
			"query": {"pages": [
				{"pageid": 63175, "ns": 0, "title": "100% Completion",
				 "categories": [{"ns": 14, "title": "Category:100% Completion"},
				                {"ns": 14, "title": "Category:Ending Tropes"}]}
			]}
		}`))
	}))
	defer srv.Close()

	resp, err := NewClient(endpointFor(t, srv)).Query(context.Background(), url.Values{})
	require.NoError(t, err)

	assert.False(t, resp.BatchComplete)
	assert.Equal(t, map[string]string{"clcontinue": "63175|Ending_Tropes", "continue": "||"}, resp.Continue)
	require.NotNil(t, resp.Query)
	require.Len(t, resp.Query.Pages, 1)
	p := resp.Query.Pages[0]
	assert.Equal(t, Page{ID: 63175, Title: "100% Completion"}, p.Page())
	require.Len(t, p.Categories, 2)
	assert.Equal(t, "Category:Ending Tropes", p.Categories[1].Title)
}

func TestClientQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"query": `,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "wrong shape",
			status: http.StatusOK,
			body:   `{"query": {"pages": {"63175": {}}}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "api error object",
			status: http.StatusOK,
			body:   `{"error": {"code": "maxlag", "info": "Waiting for a database server: 3 seconds lagged."}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, "maxlag", apiErr.Code)
			},
		},
		{
			name:   "http status",
			status: http.StatusServiceUnavailable,
			body:   `busy`,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(endpointFor(t, srv)).Query(context.Background(), url.Values{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClientQuery_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"batchcomplete":true}`))
	}))
	defer srv.Close()

	m := metrics.NewCrawl(prometheus.NewRegistry())
	c := NewClient(endpointFor(t, srv), WithMetrics(m))
	params := url.Values{}
	params.Set("generator", "allcategories")

	_, err := c.Query(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("allcategories", "ok")))
}

func TestClientQuery_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"batchcomplete":true}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(endpointFor(t, srv), WithRate(1)).Query(ctx, url.Values{})
	require.Error(t, err)
}

func TestMergeContinue(t *testing.T) {
	params := url.Values{}
	params.Set("generator", "categorymembers")
	params.Set("gcmtitle", "Category:Trope")

	// First response continues the generator.
	next := MergeContinue(params, map[string]string{"gcmcontinue": "X", "continue": "gcmcontinue||"})
	assert.Equal(t, "X", next.Get("gcmcontinue"))
	assert.Equal(t, "gcmcontinue||", next.Get("continue"))

	// Second response switches to property continuation; the generator key is stale.
	next = MergeContinue(next, map[string]string{"clcontinue": "Y"})
	assert.Equal(t, "Y", next.Get("clcontinue"))
	assert.False(t, next.Has("gcmcontinue"))
	assert.False(t, next.Has("continue"))
	assert.Equal(t, "Category:Trope", next.Get("gcmtitle"))
	assert.Equal(t, "categorymembers", next.Get("generator"))

	// The input is left untouched.
	assert.False(t, params.Has("gcmcontinue"))
}
