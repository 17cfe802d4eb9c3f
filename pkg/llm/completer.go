package llm

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

var (
	ErrNoChoices     = errors.New("response contained no choices")
	ErrEmptyResponse = errors.New("response content was empty")
)

// CompletionRequest is one chat completion call against a single provider.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ChatCompleter is the capability every provider backend exposes.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelCompleter adapts a langchaingo model, which already normalizes the
// provider's native response into choices.
type ModelCompleter struct {
	Model llms.Model
}

func (c ModelCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}

	resp, err := c.Model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Content, nil
}
