package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

func newTestAgent(s *fakeSearcher, pages map[string]string, model *fakeLLM) (*SearchAgent, *fakeScraper) {
	scraper := &fakeScraper{pages: pages}
	cfg := testConfig()
	return &SearchAgent{
		Searcher: s,
		Worker:   &Worker{Scraper: scraper, LLM: model, Config: cfg, Logger: quietLogger()},
		Config:   cfg,
		Logger:   quietLogger(),
	}, scraper
}

func TestAgentNoResultsSpawnsNothing(t *testing.T) {
	agent, scraper := newTestAgent(&fakeSearcher{}, nil, &fakeLLM{})

	assert.Equal(t, "", agent.Run(context.Background(), "Jane Doe"))
	assert.Zero(t, scraper.count())
}

func TestAgentSearchErrorIsEmpty(t *testing.T) {
	agent, scraper := newTestAgent(&fakeSearcher{err: errors.New("quota exceeded")}, nil, &fakeLLM{})

	assert.Equal(t, "", agent.Run(context.Background(), "Jane Doe"))
	assert.Zero(t, scraper.count())
}

func TestAgentAggregatesEveryNonEmptySummary(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]tools.SearchResult{
		"Jane Doe": links("https://a.example", "https://b.example", "https://short.example", "https://down.example"),
	}}
	pages := map[string]string{
		"https://a.example":     htmlPage(words("alpha", 30)),
		"https://b.example":     htmlPage(words("beta", 30)),
		"https://short.example": htmlPage("tiny"),
	}
	agent, scraper := newTestAgent(searcher, pages, &fakeLLM{respond: echoChunks})

	var (
		mu        sync.Mutex
		pagesSeen []PageSummary
	)
	agent.OnPage = func(p PageSummary) {
		mu.Lock()
		pagesSeen = append(pagesSeen, p)
		mu.Unlock()
	}

	got := agent.Run(context.Background(), "Jane Doe")

	assert.Contains(t, got, "\nURL: https://a.example\nSummary: summary of alpha\n")
	assert.Contains(t, got, "\nURL: https://b.example\nSummary: summary of beta\n")
	assert.NotContains(t, got, "short.example")
	assert.NotContains(t, got, "down.example")
	assert.Equal(t, 4, scraper.count())
	assert.ElementsMatch(t, []PageSummary{
		{SourceURL: "https://a.example", Summary: "summary of alpha"},
		{SourceURL: "https://b.example", Summary: "summary of beta"},
	}, pagesSeen)
}

func TestAgentStaggersWorkers(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]tools.SearchResult{
		"q": links("https://a.example", "https://b.example", "https://c.example"),
	}}
	agent, scraper := newTestAgent(searcher, nil, &fakeLLM{})
	agent.Config.WorkerStagger = 30 * time.Millisecond

	start := time.Now()
	agent.Run(context.Background(), "q")

	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	assert.Equal(t, 3, scraper.count())
}

func TestAgentStopsSpawningWhenCancelled(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]tools.SearchResult{
		"q": links("https://a.example", "https://b.example", "https://c.example"),
	}}
	agent, scraper := newTestAgent(searcher, nil, &fakeLLM{})
	agent.Config.WorkerStagger = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Equal(t, "", agent.Run(ctx, "q"))
	assert.Equal(t, 1, scraper.count())
}
