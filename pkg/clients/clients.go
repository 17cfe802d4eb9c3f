package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// Known lists every provider name New understands, in the default call order.
var Known = []string{"openai", "openrouter", "kilocode", "deepseek", "gemini", "anthropic"}

// New builds the langchaingo model for a provider name.
func New(ctx context.Context, name, apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: missing API key", name)
	}
	switch name {
	case "openai":
		return OpenAI(apiKey, "", model)
	case "openrouter":
		return OpenAI(apiKey, OpenRouterBaseURL, model)
	case "kilocode":
		return OpenAI(apiKey, KilocodeBaseURL, model)
	case "deepseek":
		return OpenAI(apiKey, DeepSeekBaseURL, model)
	case "gemini":
		return GoogleAi(ctx, apiKey, ModelType(model))
	case "anthropic":
		return Anthropic(apiKey, model)
	}
	return nil, fmt.Errorf("unknown provider: %s", name)
}
