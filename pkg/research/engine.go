package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikeboe/osint-helper/pkg/cache"
	"github.com/mikeboe/osint-helper/pkg/config"
	"github.com/mikeboe/osint-helper/pkg/embeddings"
	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/metrics"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
	"github.com/mikeboe/osint-helper/pkg/vectorstore"
)

// State is a progress snapshot of one run.
type State struct {
	Phase  string  `json:"phase"`
	Pages  int     `json:"pages"`
	Blocks []Block `json:"blocks,omitempty"`
	Cycles int     `json:"cycles"`
}

// RunOptions customises a single run.
type RunOptions struct {
	Logger        *slog.Logger
	OnStateUpdate func(State)
}

// ResearchEngine owns the long-lived collaborators and wires a fresh
// component graph for every run.
type ResearchEngine struct {
	Config   Config
	LLM      Completer
	Searcher tools.Searcher
	Scraper  tools.Scraper
	Cleaner  tools.Cleaner
	Indexer  Indexer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	closers []io.Closer
}

// BuildOptions carries process-level dependencies for NewEngine.
type BuildOptions struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Pool enables knowledge indexing when rag.enabled is set.
	Pool *pgxpool.Pool
}

// NewEngine builds the dispatcher, search, scrape and indexing stack from c.
func NewEngine(ctx context.Context, c *config.Config, opts BuildOptions) (*ResearchEngine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pageCache, err := cache.New(c.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to init page cache: %w", err)
	}

	dispatcher := llm.NewFromConfig(ctx, c.LLM, llm.WithLogger(logger), llm.WithMetrics(opts.Metrics))
	if len(dispatcher.Providers()) == 0 {
		logger.Warn("No LLM providers configured; every completion will return an error string")
	}

	e := &ResearchEngine{
		Config:   ConfigFrom(c),
		LLM:      dispatcher,
		Searcher: tools.NewSearcher(c.Search, logger),
		Scraper:  tools.NewScraper(c.Scrape, pageCache, logger),
		Cleaner:  tools.NewCleaner(c.Scrape.Cleaner),
		Metrics:  opts.Metrics,
		Logger:   logger,
	}
	if closer, ok := pageCache.(io.Closer); ok {
		e.closers = append(e.closers, closer)
	}

	if c.Rag.Enabled {
		if opts.Pool == nil {
			logger.Warn("Knowledge indexing enabled but no database is available")
		} else if ix, err := newIndexer(ctx, c, opts.Pool); err != nil {
			logger.Warn("Knowledge indexing disabled", "error", err)
		} else {
			e.Indexer = ix
		}
	}
	return e, nil
}

func newIndexer(ctx context.Context, c *config.Config, pool *pgxpool.Pool) (*KnowledgeIndexer, error) {
	emb, err := embeddings.NewGoogleEmbedder(ctx, c.Rag.EmbeddingModel, c.LLM.GoogleKey)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.NewKnowledgeStore(pool, c.Rag.Collection)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureTable(ctx, emb.Dimension()); err != nil {
		return nil, err
	}
	return NewKnowledgeIndexer(c.Rag.ChunkSize, c.Rag.ChunkOverlap, emb, store), nil
}

// Close releases the page cache connection, if any.
func (e *ResearchEngine) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// run is the component graph of one run plus its progress tracker.
type run struct {
	aggregator *Aggregator
	tracker    *tracker
	logger     *slog.Logger
}

func (e *ResearchEngine) newRun(opts RunOptions) *run {
	logger := opts.Logger
	if logger == nil {
		logger = e.Logger
	}
	t := &tracker{notify: opts.OnStateUpdate}

	worker := &Worker{
		Scraper: e.Scraper,
		Cleaner: e.Cleaner,
		LLM:     e.LLM,
		Indexer: e.Indexer,
		Config:  e.Config,
		Metrics: e.Metrics,
		Logger:  logger,
	}
	agent := &SearchAgent{
		Searcher: e.Searcher,
		Worker:   worker,
		Config:   e.Config,
		Metrics:  e.Metrics,
		Logger:   logger,
		OnPage:   func(PageSummary) { t.page() },
	}
	return &run{
		aggregator: &Aggregator{
			Agent:   agent,
			Planner: &Planner{LLM: e.LLM, Config: e.Config, Logger: logger},
			LLM:     e.LLM,
			Config:  e.Config,
			Logger:  logger,
			OnBlock: t.block,
		},
		tracker: t,
		logger:  logger,
	}
}

// Research gathers knowledge for query and answers question from it.
func (e *ResearchEngine) Research(ctx context.Context, query, question string, rounds int, opts RunOptions) LookupResult {
	r := e.newRun(opts)
	r.tracker.phase("collecting")
	res := Research(ctx, r.aggregator, query, question, rounds)
	r.tracker.phase("completed")
	r.logger.Info("Research finished", "query", query, "blocks", len(res.Knowledge), "elapsed", res.Elapsed)
	return res
}

// Lookup runs a person lookup with the configured number of rounds.
func (e *ResearchEngine) Lookup(ctx context.Context, name, question string, opts RunOptions) LookupResult {
	r := e.newRun(opts)
	r.tracker.phase("collecting")
	lookup := &PersonLookup{Aggregator: r.aggregator, Rounds: e.Config.Rounds, Logger: r.logger}
	res := lookup.Lookup(ctx, name, question)
	r.tracker.phase("completed")
	return res
}

// Investigate runs the PERA loop for objective.
func (e *ResearchEngine) Investigate(ctx context.Context, objective string, subject Subject, opts RunOptions) Report {
	r := e.newRun(opts)
	inv := &Investigator{
		Lookup:    &PersonLookup{Aggregator: r.aggregator, Rounds: e.Config.Rounds, Logger: r.logger},
		MaxCycles: e.Config.MaxCycles,
		Logger:    r.logger,
		OnCycle:   func(Cycle) { r.tracker.cycle() },
	}
	r.tracker.phase("investigating")
	report := inv.Investigate(ctx, objective, subject)
	r.tracker.phase("completed")
	r.logger.Info("Investigation finished", "cycles", report.TotalCycles, "stop_reason", report.StopReason)
	return report
}

type tracker struct {
	mu     sync.Mutex
	state  State
	notify func(State)
}

func (t *tracker) update(f func(*State)) {
	t.mu.Lock()
	f(&t.state)
	snap := t.state
	snap.Blocks = append([]Block(nil), t.state.Blocks...)
	t.mu.Unlock()
	if t.notify != nil {
		t.notify(snap)
	}
}

func (t *tracker) phase(p string) { t.update(func(s *State) { s.Phase = p }) }
func (t *tracker) page()          { t.update(func(s *State) { s.Pages++ }) }
func (t *tracker) cycle()         { t.update(func(s *State) { s.Cycles++ }) }

func (t *tracker) block(b Block) {
	t.update(func(s *State) { s.Blocks = append(s.Blocks, b) })
}
