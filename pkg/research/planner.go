package research

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mikeboe/osint-helper/pkg/llm"
)

// Planner asks the model which topics deserve a deeper look.
type Planner struct {
	LLM    Completer
	Config Config
	Logger *slog.Logger
}

// Topics returns the comma separated topics suggested for knowledge, trimmed
// with empties removed. A failed completion yields no topics.
func (p *Planner) Topics(ctx context.Context, knowledge string) []string {
	out := p.LLM.Complete(ctx, p.Config.request(deepDivePrompt(knowledge)))
	if llm.IsSentinel(out) {
		logger := p.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Deep dive planning failed", "error", out)
		return nil
	}
	return parseTopics(out)
}

func parseTopics(text string) []string {
	var topics []string
	for _, part := range strings.Split(text, ",") {
		if t := strings.TrimSpace(part); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
