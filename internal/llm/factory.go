package llm

import (
	"fmt"

	"github.com/scrypster/converse/internal/config"
)

// NewTextGenerator creates the appropriate TextGenerator based on LLM config.
// Returns (nil, nil) when the configured provider requires an API key that is
// not set; callers treat a nil generator as "summarizer unconfigured" and
// fall back to degraded behavior instead of failing.
func NewTextGenerator(cfg config.LLMConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel}), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, nil
		}
		return NewAnthropicClient(AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.OllamaURL, Model: cfg.OllamaModel}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
