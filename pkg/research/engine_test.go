package research

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

func newTestEngine(model *fakeLLM) *ResearchEngine {
	cfg := testConfig()
	cfg.Rounds = 1
	cfg.MaxCycles = 2
	return &ResearchEngine{
		Config: cfg,
		LLM:    model,
		Searcher: &fakeSearcher{results: map[string][]tools.SearchResult{
			"Learn as much as you can about Jane Doe":            links("https://a.example"),
			"Learn as much as you can about Jane Doe employment": links("https://b.example"),
		}},
		Scraper: &fakeScraper{pages: map[string]string{
			"https://a.example": htmlPage(words("alpha", 40)),
			"https://b.example": htmlPage(words("beta", 40)),
		}},
		Logger: quietLogger(),
	}
}

func engineLLM(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Based on"):
		return "employment"
	case strings.HasPrefix(prompt, "Using the"):
		return "Jane Doe works at Acme."
	}
	return echoChunks(prompt)
}

func TestEngineLookupTracksState(t *testing.T) {
	e := newTestEngine(&fakeLLM{respond: engineLLM})

	var (
		mu     sync.Mutex
		states []State
	)
	res := e.Lookup(context.Background(), "Jane Doe", "", RunOptions{
		Logger: quietLogger(),
		OnStateUpdate: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	assert.Equal(t, "Jane Doe works at Acme.", res.Answer)
	assert.ElementsMatch(t, []Block{
		{Label: LabelInitial, Text: "\nURL: https://a.example\nSummary: summary of alpha\n"},
		{Label: DeepDiveLabel("employment"), Text: "\nURL: https://b.example\nSummary: summary of beta\n"},
	}, res.Knowledge)

	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.Equal(t, "completed", last.Phase)
	assert.Equal(t, 2, last.Pages)
	assert.Len(t, last.Blocks, 2)
}

func TestEngineInvestigate(t *testing.T) {
	e := newTestEngine(&fakeLLM{respond: engineLLM})

	r := e.Investigate(context.Background(), "vet match", Subject{Name: "Jane Doe"}, RunOptions{})

	assert.Equal(t, StopObjectiveMet, r.StopReason)
	assert.Equal(t, 2, r.SuccessfulFindings)
	assert.Equal(t, "Jane Doe works at Acme.", r.Findings[0].Data)
}
