package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"allthetropes/catwalk/internal/metrics"
)

// ContinuationSuffix marks request parameters that carry continuation state.
const ContinuationSuffix = "continue"

// Client defaults.
const (
	// DefaultMaxLag is the maxlag hint sent with every request, in seconds.
	DefaultMaxLag    = 1
	DefaultTimeout   = 60 * time.Second
	DefaultUserAgent = "catwalk/0.1 (category graph crawler)"
)

// ErrMalformedResponse is returned when a response cannot be decoded into the
// expected shape.
var ErrMalformedResponse = errors.New("malformed API response")

// APIError is an error object reported by the remote API, e.g. code "maxlag"
// when the server sheds load.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Endpoint is the network location of an api.php entry point.
type Endpoint struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
	Path   string `yaml:"path"`
}

// DefaultEndpoint is the All The Tropes API.
func DefaultEndpoint() Endpoint {
	return Endpoint{Scheme: "https", Host: "allthetropes.org", Path: "w/api.php/"}
}

// URL builds the request URL for the given query parameters.
func (e Endpoint) URL(params url.Values) string {
	u := url.URL{Scheme: e.Scheme, Host: e.Host, Path: e.Path, RawQuery: params.Encode()}
	return u.String()
}

func (e Endpoint) String() string {
	return e.URL(nil)
}

// Response is the decoded body of an action=query, formatversion=2 request.
type Response struct {
	BatchComplete bool              `json:"batchcomplete"`
	Continue      map[string]string `json:"continue,omitempty"`
	Query         *QueryResult      `json:"query,omitempty"`
	Error         *APIError         `json:"error,omitempty"`
}

// QueryResult holds the generated pages.
type QueryResult struct {
	Pages []PageResult `json:"pages"`
}

// PageResult is one generated page with its (possibly partial) categories.
type PageResult struct {
	PageID     int64         `json:"pageid"`
	NS         int           `json:"ns"`
	Title      string        `json:"title"`
	Missing    bool          `json:"missing,omitempty"`
	Categories []CategoryRef `json:"categories,omitempty"`
}

// CategoryRef is a parent category reported by prop=categories. It carries a
// title only; the ID must be resolved separately.
type CategoryRef struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

// Page returns the identity of the result.
func (p PageResult) Page() Page {
	return Page{ID: p.PageID, Title: p.Title}
}

// Querier issues a single API request. *Client implements it; tests and
// callers that add retries can supply their own.
type Querier interface {
	Query(ctx context.Context, params url.Values) (*Response, error)
	Endpoint() Endpoint
}

// Client talks to one api.php endpoint, strictly sequentially.
type Client struct {
	endpoint  Endpoint
	http      *http.Client
	limiter   *rate.Limiter
	maxLag    int
	userAgent string
	metrics   *metrics.Crawl
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRate paces requests to at most perSecond. Zero or negative disables pacing.
func WithRate(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithMaxLag sets the maxlag hint sent with every request.
func WithMaxLag(seconds int) ClientOption {
	return func(c *Client) { c.maxLag = seconds }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithMetrics records request counters.
func WithMetrics(m *metrics.Crawl) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for endpoint.
func NewClient(endpoint Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:  endpoint,
		http:      &http.Client{Timeout: DefaultTimeout},
		limiter:   rate.NewLimiter(rate.Inf, 1),
		maxLag:    DefaultMaxLag,
		userAgent: DefaultUserAgent,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the endpoint the client targets.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// Query performs one GET with the fixed query fields added to params and
// decodes the response. A response carrying an error object is returned as
// *APIError.
func (c *Client) Query(ctx context.Context, params url.Values) (*Response, error) {
	resp, err := c.query(ctx, params)
	c.metrics.ObserveRequest(params.Get("generator"), err)
	return resp, err
}

func (c *Client) query(ctx context.Context, params url.Values) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := withFixedFields(params, c.maxLag)
	target := c.endpoint.URL(q)
	c.logger.Debug("api request", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", c.endpoint.Host, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &HTTPError{StatusCode: res.StatusCode, URL: target}
	}

	return decodeResponse(res.Body)
}

func decodeResponse(r io.Reader) (*Response, error) {
	var out Response
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return &out, nil
}

func withFixedFields(params url.Values, maxLag int) url.Values {
	q := make(url.Values, len(params)+4)
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("maxlag", strconv.Itoa(maxLag))
	return q
}

// MergeContinue returns a copy of params with every continuation-suffixed key
// removed and the keys of cont added verbatim. Stale keys from an earlier
// phase must not survive into the next request.
func MergeContinue(params url.Values, cont map[string]string) url.Values {
	next := make(url.Values, len(params)+len(cont))
	for k, v := range params {
		if strings.HasSuffix(k, ContinuationSuffix) {
			continue
		}
		next[k] = append([]string(nil), v...)
	}
	for k, v := range cont {
		next.Set(k, v)
	}
	return next
}
