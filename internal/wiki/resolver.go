package wiki

import (
	"context"
	"fmt"
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"

	"allthetropes/catwalk/internal/metrics"
)

// DefaultLookupCacheSize bounds the number of memoized category lookups.
// Eviction only costs a repeated round-trip; results are deterministic.
const DefaultLookupCacheSize = 1 << 16

type lookupKey struct {
	name     string
	endpoint Endpoint
}

// lookupResult memoizes misses as well as hits.
type lookupResult struct {
	page  Page
	found bool
}

// LookupCache memoizes category name lookups keyed by the exact name plus the
// endpoint it was resolved against, so sessions against different endpoints
// never share entries. Create one per crawl session and pass it to every
// Resolver of that session. Safe for concurrent use.
type LookupCache struct {
	entries *lru.Cache[lookupKey, lookupResult]
}

// NewLookupCache returns a cache holding up to size entries. size <= 0 uses
// DefaultLookupCacheSize.
func NewLookupCache(size int) (*LookupCache, error) {
	if size <= 0 {
		size = DefaultLookupCacheSize
	}
	entries, err := lru.New[lookupKey, lookupResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating lookup cache: %w", err)
	}
	return &LookupCache{entries: entries}, nil
}

// Len returns the number of cached lookups.
func (c *LookupCache) Len() int { return c.entries.Len() }

// Resolver maps category names to stable page identities.
type Resolver struct {
	client  Querier
	cache   *LookupCache
	metrics *metrics.Crawl
}

// NewResolver returns a resolver that queries client and memoizes into cache.
func NewResolver(client Querier, cache *LookupCache, m *metrics.Crawl) *Resolver {
	return &Resolver{client: client, cache: cache, metrics: m}
}

// Resolve looks up the category named name (without the "Category:" prefix)
// with a single allcategories query bounded to exactly that name. It returns
// found=false when the result set is empty, ambiguous, or marked missing.
// Transport and decode failures are returned as errors and are not cached.
func (r *Resolver) Resolve(ctx context.Context, name string) (Page, bool, error) {
	key := lookupKey{name: name, endpoint: r.client.Endpoint()}
	if hit, ok := r.cache.entries.Get(key); ok {
		r.metrics.ObserveLookup(metrics.LookupHit)
		return hit.page, hit.found, nil
	}

	params := url.Values{}
	params.Set("generator", "allcategories")
	params.Set("gacfrom", name)
	params.Set("gacto", name)

	resp, err := r.client.Query(ctx, params)
	if err != nil {
		return Page{}, false, fmt.Errorf("resolving category %q: %w", name, err)
	}

	result := singlePage(resp)
	r.cache.entries.Add(key, result)
	if result.found {
		r.metrics.ObserveLookup(metrics.LookupResolved)
	} else {
		r.metrics.ObserveLookup(metrics.LookupMissing)
	}
	return result.page, result.found, nil
}

func singlePage(resp *Response) lookupResult {
	if resp.Query == nil || len(resp.Query.Pages) != 1 {
		return lookupResult{}
	}
	p := resp.Query.Pages[0]
	if p.Missing {
		return lookupResult{}
	}
	return lookupResult{page: p.Page(), found: true}
}
