package llm

import (
	"fmt"

	"github.com/inklet/chronicle/internal/config"
)

// NewTextGenerator creates the appropriate TextGenerator from config.
func NewTextGenerator(cfg config.LLMConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires an API key")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			BaseURL:        cfg.OpenAIBaseURL,
			RequestsPerMin: cfg.RequestsPerMin,
		}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			Model:          cfg.OllamaModel,
			RequestsPerMin: cfg.RequestsPerMin,
		}), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider: %q", cfg.Provider)
	}
}

// NewEmbeddingGenerator creates the appropriate EmbeddingGenerator for
// chapter-summary recall. Returns (nil, nil) when the provider offers no
// embedding endpoint; callers treat a nil generator as "recall disabled".
func NewEmbeddingGenerator(cfg config.LLMConfig) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			Model:          "nomic-embed-text",
			RequestsPerMin: cfg.RequestsPerMin,
		}), nil
	default:
		return nil, nil
	}
}
