package research

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/metrics"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
	"github.com/mikeboe/osint-helper/pkg/splitter"
)

// Indexer stores page text for later retrieval. It is optional.
type Indexer interface {
	Index(ctx context.Context, sourceURL, text string) error
}

// Worker turns one URL into a condensed summary of its readable text.
type Worker struct {
	Scraper tools.Scraper
	Cleaner tools.Cleaner
	LLM     Completer
	Indexer Indexer
	Config  Config
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Summarize fetches url and returns the chunk summaries joined by newlines.
// It returns "" when the page cannot be fetched or carries too little text;
// no error escapes.
func (w *Worker) Summarize(ctx context.Context, url string) string {
	logger := w.logger().With("url", url)

	raw, err := w.Scraper.Fetch(ctx, url)
	if err != nil {
		logger.Warn("Failed to fetch page", "error", err)
		w.Metrics.ObservePage("fetch_failed")
		return ""
	}

	text := w.cleaner().Clean(raw, url)
	if chars := utf8.RuneCountInString(strings.TrimSpace(text)); chars < w.Config.MinTextChars {
		logger.Debug("Page has too little text", "chars", chars)
		w.Metrics.ObservePage("too_short")
		return ""
	}

	if w.Indexer != nil {
		if err := w.Indexer.Index(ctx, url, text); err != nil {
			logger.Warn("Failed to index page", "error", err)
		}
	}

	chunks := splitter.SplitWords(text, w.Config.ChunkWords)
	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		out := w.LLM.Complete(ctx, w.Config.request(chunkPrompt(chunk)))
		if llm.IsSentinel(out) {
			logger.Warn("Chunk summary failed", "chunk", i, "error", out)
			continue
		}
		summaries = append(summaries, strings.TrimSpace(out))
	}

	if len(summaries) == 0 {
		w.Metrics.ObservePage("empty")
		return ""
	}
	w.Metrics.ObservePage("ok")
	logger.Info("Summarized page", "chunks", len(chunks), "kept", len(summaries))
	return strings.Join(summaries, "\n")
}

func (w *Worker) cleaner() tools.Cleaner {
	if w.Cleaner == nil {
		return tools.TextCleaner{}
	}
	return w.Cleaner
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}
