package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/config"
	"allthetropes/catwalk/internal/crawl"
	"allthetropes/catwalk/internal/db"
	"allthetropes/catwalk/internal/metrics"
	"allthetropes/catwalk/internal/wiki"
)

var (
	crawlBatchLimit  int
	crawlFanoutLimit int
	crawlMaxMembers  int
	crawlExclude     string
	crawlNoExclude   bool
	crawlRetries     int
	crawlRate        float64
	crawlTitles      string
	crawlMetricsFile string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [category...]",
	Short: "Walk categories and store every member with its parent categories",
	Long: `Walks each category (name without the "Category:" prefix) through the
remote API and upserts one snapshot per completed batch into the store.
Parent categories that are members of the exclusion category are dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyCrawlFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}

		categories := args
		if len(categories) == 0 {
			categories = []string{cfg.Crawl.Category}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		runID := uuid.NewString()
		logger, err := newLogger(cfg, slog.String("run", runID))
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		m := metrics.NewCrawl(reg)

		store, err := OpenDatabase(cfg, true, db.WithMetrics(m))
		if err != nil {
			return err
		}
		defer store.Close()

		walker, err := newWalker(cfg, m, logger)
		if err != nil {
			return err
		}
		start := time.Now()
		fmt.Fprintf(os.Stderr, "[crawl] run %s against %s\n", runID[:8], cfg.Endpoint.Host)

		excluded := roaring64.New()
		if cfg.Crawl.Exclude != "" {
			excluded, err = withRetries(ctx, cfg.Crawl.Retries, logger, func() (*roaring64.Bitmap, error) {
				return crawl.CollectMembers(ctx, walker, cfg.Crawl.Exclude)
			})
			if err != nil {
				return fmt.Errorf("collecting %q members: %w", cfg.Crawl.Exclude, err)
			}
			fmt.Fprintf(os.Stderr, "[crawl] excluding %s pages from %q\n",
				humanize.Comma(int64(excluded.GetCardinality())), cfg.Crawl.Exclude)
		}

		opts := crawl.Options{
			ExcludedPages: excluded,
			BatchLimit:    cfg.Crawl.BatchLimit,
			FanoutLimit:   cfg.Crawl.FanoutLimit,
			MaxMembers:    cfg.Crawl.MaxMembers,
		}
		for _, category := range categories {
			res, err := withRetries(ctx, cfg.Crawl.Retries, logger, func() (crawlResult, error) {
				return crawlCategory(ctx, walker, store, category, opts)
			})
			if err != nil {
				return fmt.Errorf("crawling %q: %w", category, err)
			}
			fmt.Printf("[crawl] %s: %s members in %s batches\n",
				category, humanize.Comma(int64(res.members)), humanize.Comma(int64(res.batches)))
		}

		stats, err := store.Counts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("[crawl] store: %s categories, %s tropes, %s edges (%s)\n",
			humanize.Comma(int64(stats.Categories)), humanize.Comma(int64(stats.Tropes)),
			humanize.Comma(int64(stats.Edges)), time.Since(start).Round(time.Millisecond))

		if cfg.Metrics.Textfile != "" {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}
		return nil
	},
}

type crawlResult struct {
	members int
	batches int
}

// crawlCategory drains one walk into the store. Every attempt starts a fresh
// walk; upserts are idempotent so replaying batches is harmless.
func crawlCategory(ctx context.Context, w *crawl.Walker, store *db.DB, category string, opts crawl.Options) (crawlResult, error) {
	cur := w.Walk(ctx, category, opts)
	for cur.Next() {
		if err := store.Upsert(ctx, cur.Snapshot()); err != nil {
			return crawlResult{}, err
		}
	}
	if err := cur.Err(); err != nil {
		return crawlResult{}, err
	}
	return crawlResult{members: cur.Total(), batches: cur.Batches()}, nil
}

func newClient(cfg *config.Config, m *metrics.Crawl, logger *slog.Logger) *wiki.Client {
	return wiki.NewClient(cfg.Endpoint,
		wiki.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		wiki.WithRate(cfg.Client.Rate),
		wiki.WithMaxLag(cfg.Client.MaxLag),
		wiki.WithUserAgent(cfg.Client.UserAgent),
		wiki.WithMetrics(m),
		wiki.WithLogger(logger),
	)
}

// newWalker builds a walker with a fresh lookup cache for this session.
func newWalker(cfg *config.Config, m *metrics.Crawl, logger *slog.Logger) (*crawl.Walker, error) {
	client := newClient(cfg, m, logger)
	cache, err := wiki.NewLookupCache(0)
	if err != nil {
		return nil, err
	}
	resolver := wiki.NewResolver(client, cache, m)
	return crawl.NewWalker(client, resolver, crawl.WithMetrics(m), crawl.WithLogger(logger)), nil
}

func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("gcmlimit") {
		cfg.Crawl.BatchLimit = crawlBatchLimit
	}
	if flags.Changed("cllimit") {
		cfg.Crawl.FanoutLimit = crawlFanoutLimit
	}
	if flags.Changed("max-members") {
		cfg.Crawl.MaxMembers = crawlMaxMembers
	}
	if flags.Changed("exclude") {
		cfg.Crawl.Exclude = crawlExclude
	}
	if crawlNoExclude {
		cfg.Crawl.Exclude = ""
	}
	if flags.Changed("retries") {
		cfg.Crawl.Retries = crawlRetries
	}
	if flags.Changed("rate") {
		cfg.Client.Rate = crawlRate
	}
	if flags.Changed("title-policy") {
		cfg.Database.TitlePolicy = crawlTitles
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = crawlMetricsFile
	}
}

func init() {
	crawlCmd.Flags().IntVar(&crawlBatchLimit, "gcmlimit", crawl.DefaultBatchLimit, "Members per request (clamped to 10-500)")
	crawlCmd.Flags().IntVar(&crawlFanoutLimit, "cllimit", crawl.DefaultFanoutLimit, "Parent categories per request (clamped to 10-500)")
	crawlCmd.Flags().IntVar(&crawlMaxMembers, "max-members", 0, "Stop after this many members (0 = unlimited)")
	crawlCmd.Flags().StringVar(&crawlExclude, "exclude", "", "Category whose members are dropped as parents")
	crawlCmd.Flags().BoolVar(&crawlNoExclude, "no-exclude", false, "Keep every parent category")
	crawlCmd.Flags().IntVar(&crawlRetries, "retries", 0, "Restart a failed crawl up to this many times")
	crawlCmd.Flags().Float64Var(&crawlRate, "rate", 0, "Maximum requests per second (0 = unpaced)")
	crawlCmd.Flags().StringVar(&crawlTitles, "title-policy", "", "On a known id: keep-first or refresh")
	crawlCmd.Flags().StringVar(&crawlMetricsFile, "metrics-file", "", "Write Prometheus counters to this file when done")
	rootCmd.AddCommand(crawlCmd)
}
