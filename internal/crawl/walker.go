// Package crawl walks a remote category and yields membership snapshots.
//
// The remote API may continue a query because more categories remain for the
// current page set, because the generator has more pages, or both. Only the
// batchcomplete signal guarantees that each page's category set is final, so
// the walker accumulates across responses and emits exactly at batch
// completion.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/RoaringBitmap/roaring/roaring64"

	"allthetropes/catwalk/internal/metrics"
	"allthetropes/catwalk/internal/wiki"
)

// Request limits accepted by the remote API.
const (
	MinLimit = 10
	MaxLimit = 500

	DefaultBatchLimit  = 50
	DefaultFanoutLimit = 20
)

// Options controls one walk.
type Options struct {
	// ExcludedPages holds IDs of parent categories to drop from every snapshot.
	ExcludedPages *roaring64.Bitmap
	// BatchLimit is gcmlimit, the number of generator members per request.
	BatchLimit int
	// FanoutLimit is cllimit, the number of parent categories per request.
	FanoutLimit int
	// MaxMembers stops the walk once this many members were yielded.
	// Zero or negative means unlimited.
	MaxMembers int
}

// ClampLimit bounds n to [MinLimit, MaxLimit]; zero selects def.
func ClampLimit(n, def int) int {
	if n == 0 {
		n = def
	}
	return max(MinLimit, min(n, MaxLimit))
}

// Walker drives the paginated category crawl against one endpoint.
type Walker struct {
	client   wiki.Querier
	resolver *wiki.Resolver
	metrics  *metrics.Crawl
	logger   *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithMetrics records emitted snapshots.
func WithMetrics(m *metrics.Crawl) WalkerOption {
	return func(w *Walker) { w.metrics = m }
}

// WithLogger sets the progress logger.
func WithLogger(l *slog.Logger) WalkerOption {
	return func(w *Walker) { w.logger = l }
}

// NewWalker returns a walker issuing requests through client and resolving
// parent category names through resolver.
func NewWalker(client wiki.Querier, resolver *wiki.Resolver, opts ...WalkerOption) *Walker {
	w := &Walker{
		client:   client,
		resolver: resolver,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk returns a lazy cursor over the snapshots of category (a name without
// the "Category:" prefix). No request is issued until the first Next.
func (w *Walker) Walk(ctx context.Context, category string, opts Options) *Cursor {
	params := url.Values{}
	params.Set("generator", "categorymembers")
	params.Set("gcmtitle", wiki.CategoryPrefix+category)
	params.Set("gcmlimit", strconv.Itoa(ClampLimit(opts.BatchLimit, DefaultBatchLimit)))
	params.Set("gcmtype", "subcat|page")
	params.Set("prop", "categories")
	params.Set("cllimit", strconv.Itoa(ClampLimit(opts.FanoutLimit, DefaultFanoutLimit)))

	maxMembers := opts.MaxMembers
	if maxMembers <= 0 {
		maxMembers = 0
	}

	return &Cursor{
		ctx:        ctx,
		w:          w,
		category:   category,
		params:     params,
		acc:        wiki.NewSnapshot(),
		excluded:   opts.ExcludedPages,
		maxMembers: maxMembers,
	}
}

// Cursor is a forward-only, non-restartable sequence of snapshots. It is not
// safe for concurrent use. Stopping iteration early leaves nothing behind:
// the in-flight accumulator is simply dropped.
//
//	cur := walker.Walk(ctx, "Trope", opts)
//	for cur.Next() {
//		store.Upsert(ctx, cur.Snapshot())
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	ctx        context.Context
	w          *Walker
	category   string
	params     url.Values
	acc        wiki.Snapshot
	cur        wiki.Snapshot
	excluded   *roaring64.Bitmap
	maxMembers int
	total      int
	batches    int
	done       bool
	err        error
}

// Next advances to the next completed snapshot. It returns false when the
// remote signals no further continuation, when MaxMembers has been reached,
// or on error. A trailing accumulator that never saw batchcomplete is not
// emitted.
func (c *Cursor) Next() bool {
	c.cur = nil
	for !c.done {
		if c.maxMembers > 0 && c.total >= c.maxMembers {
			c.done = true
			break
		}

		resp, err := c.w.client.Query(c.ctx, c.params)
		if err != nil {
			c.fail(err)
			break
		}
		if err := c.merge(resp); err != nil {
			c.fail(err)
			break
		}

		var emitted wiki.Snapshot
		if resp.BatchComplete {
			emitted = c.acc
			c.acc = wiki.NewSnapshot()
			c.total += len(emitted)
			c.batches++
			c.w.metrics.ObserveSnapshot(len(emitted))
			c.w.logger.Info("batchcomplete",
				"category", c.category, "batch", len(emitted), "total", c.total)
		}

		if resp.Continue == nil {
			c.done = true
		} else {
			c.w.logger.Debug("continue",
				"category", c.category, "members", len(c.acc), "continue", resp.Continue)
			c.params = wiki.MergeContinue(c.params, resp.Continue)
		}

		if emitted != nil {
			c.cur = emitted
			return true
		}
	}
	return false
}

// Snapshot returns the snapshot produced by the last successful Next.
func (c *Cursor) Snapshot() wiki.Snapshot { return c.cur }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Total returns the running number of members yielded so far.
func (c *Cursor) Total() int { return c.total }

// Batches returns the number of snapshots yielded so far.
func (c *Cursor) Batches() int { return c.batches }

func (c *Cursor) fail(err error) {
	c.err = err
	c.done = true
	c.acc = nil
}

// merge folds one response's pages into the accumulator.
func (c *Cursor) merge(resp *wiki.Response) error {
	if resp.Query == nil {
		if resp.BatchComplete && resp.Continue == nil {
			return nil // empty category
		}
		return fmt.Errorf("%w: no query object in continued response", wiki.ErrMalformedResponse)
	}

	for _, page := range resp.Query.Pages {
		parents := make([]wiki.Page, 0, len(page.Categories))
		for _, ref := range page.Categories {
			parent, found, err := c.w.resolver.Resolve(c.ctx, wiki.CategoryName(ref.Title))
			if err != nil {
				return err
			}
			if !found || c.isExcluded(parent.ID) {
				continue
			}
			parents = append(parents, parent)
		}
		c.acc.Add(page.Page(), parents...)
	}
	return nil
}

func (c *Cursor) isExcluded(id int64) bool {
	if c.excluded == nil || id < 0 {
		return false
	}
	return c.excluded.Contains(uint64(id))
}

// CollectMembers walks category to exhaustion and returns the IDs of all its
// direct members. Used to build the excluded-page set from a maintenance
// category before a real crawl.
func CollectMembers(ctx context.Context, w *Walker, category string) (*roaring64.Bitmap, error) {
	ids := roaring64.New()
	cur := w.Walk(ctx, category, Options{BatchLimit: 100})
	for cur.Next() {
		for id := range cur.Snapshot() {
			if id >= 0 {
				ids.Add(uint64(id))
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
