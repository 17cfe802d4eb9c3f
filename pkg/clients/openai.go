package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// Base URLs of the OpenAI-compatible chat completion backends.
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	KilocodeBaseURL   = "https://api.kilocode.com/v1"
	DeepSeekBaseURL   = "https://api.deepseek.com/v1"
)

// OpenAI returns a chat client for any backend speaking the OpenAI chat/completions
// protocol. An empty baseURL targets api.openai.com.
func OpenAI(apiKey, baseURL, model string) (*openai.LLM, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init openai-compatible client: %w", err)
	}
	return llm, nil
}
