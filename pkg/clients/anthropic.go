package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

func Anthropic(apiKey, model string) (*anthropic.LLM, error) {
	opts := []anthropic.Option{anthropic.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, anthropic.WithModel(model))
	}
	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init anthropic client: %w", err)
	}
	return llm, nil
}
