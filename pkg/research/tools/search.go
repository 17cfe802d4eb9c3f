package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"
)

// SearchResult is one ranked hit. Only Link is consumed downstream.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Filters narrows a search. Zero values mean no restriction.
type Filters struct {
	Country   string // gl, e.g. "us"
	Language  string // hl, e.g. "en"
	DateRange string // tbs, e.g. "qdr:m"
	Limit     int
}

type Searcher interface {
	Search(ctx context.Context, query string, f Filters) ([]SearchResult, error)
}

// Doer is satisfied by *http.Client; tests substitute their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var ErrNoSearchBackend = errors.New("no search backend configured")

// MultiSearch queries backends in order and returns the first answer that is
// not an error. An empty result from a healthy backend is an answer.
type MultiSearch struct {
	Backends []NamedSearcher
	Logger   *slog.Logger
}

type NamedSearcher struct {
	Name string
	Searcher
}

func (m *MultiSearch) Search(ctx context.Context, query string, f Filters) ([]SearchResult, error) {
	if len(m.Backends) == 0 {
		return nil, ErrNoSearchBackend
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for _, b := range m.Backends {
		results, err := b.Search(ctx, query, f)
		if err == nil {
			logger.Debug("Search succeeded", "backend", b.Name, "query", query, "count", len(results))
			return results, nil
		}
		logger.Warn("Search backend failed", "backend", b.Name, "query", query, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
