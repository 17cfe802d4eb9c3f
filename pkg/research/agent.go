package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mikeboe/osint-helper/pkg/metrics"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

// QueryRunner answers a query with aggregated page summaries.
type QueryRunner interface {
	Run(ctx context.Context, query string) string
}

// SearchAgent searches once and fans a worker out over every result link.
type SearchAgent struct {
	Searcher tools.Searcher
	Worker   *Worker
	Config   Config
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// OnPage, when set, is called for every non-empty summary.
	OnPage func(PageSummary)
}

// Run returns one "URL/Summary" entry per page whose summary was non-empty,
// in the order the workers finished.
func (a *SearchAgent) Run(ctx context.Context, query string) string {
	logger := a.logger().With("query", query)

	results, err := a.Searcher.Search(ctx, query, a.Config.Filters)
	if err != nil {
		logger.Error("Search failed", "error", err)
		return ""
	}
	a.Metrics.ObserveSearch(len(results))
	if len(results) == 0 {
		logger.Info("Search returned no results")
		return ""
	}

	var (
		mu  sync.Mutex
		out strings.Builder
	)
	g, gctx := errgroup.WithContext(ctx)
	if a.Config.Concurrency > 0 {
		g.SetLimit(a.Config.Concurrency)
	}
	stagger := newStagger(a.Config.WorkerStagger)

	for _, r := range results {
		if r.Link == "" {
			continue
		}
		if err := stagger.Wait(gctx); err != nil {
			break
		}
		url := r.Link
		g.Go(func() error {
			summary := a.Worker.Summarize(gctx, url)
			if summary == "" {
				return nil
			}
			mu.Lock()
			fmt.Fprintf(&out, "\nURL: %s\nSummary: %s\n", url, summary)
			mu.Unlock()
			if a.OnPage != nil {
				a.OnPage(PageSummary{SourceURL: url, Summary: summary})
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Search agent finished", "results", len(results))
	return out.String()
}

func (a *SearchAgent) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// newStagger spaces out task launches; the first launch is immediate.
func newStagger(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}
