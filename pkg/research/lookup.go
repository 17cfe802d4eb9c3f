package research

import (
	"context"
	"log/slog"
	"time"
)

// LookupResult is the outcome of one person lookup or research run.
type LookupResult struct {
	Subject   string        `json:"subject"`
	Query     string        `json:"query"`
	Question  string        `json:"question"`
	Knowledge []Block       `json:"knowledge"`
	Answer    string        `json:"answer"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Lookuper is the person lookup the PERA web search tool delegates to.
type Lookuper interface {
	Lookup(ctx context.Context, name, question string) LookupResult
}

// PersonLookup gathers knowledge about a person and answers one question.
type PersonLookup struct {
	Aggregator *Aggregator
	Rounds     int
	Logger     *slog.Logger
}

func (p *PersonLookup) Lookup(ctx context.Context, name, question string) LookupResult {
	if question == "" {
		question = DefaultQuestion
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Initiating person lookup", "name", name)
	res := Research(ctx, p.Aggregator, LookupQuery(name), question, p.Rounds)
	res.Subject = name
	return res
}

// Research collects knowledge for query over rounds deep dive rounds and
// answers question from it.
func Research(ctx context.Context, agg *Aggregator, query, question string, rounds int) LookupResult {
	start := time.Now()
	kb := agg.Collect(ctx, query, rounds)
	answer := agg.Answer(ctx, kb, question)
	return LookupResult{
		Subject:   query,
		Query:     query,
		Question:  question,
		Knowledge: kb.Blocks(),
		Answer:    answer,
		Elapsed:   time.Since(start),
	}
}
