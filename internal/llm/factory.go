package llm

import "fmt"

// FactoryConfig selects and configures the model providers.
type FactoryConfig struct {
	// Provider is the text-generation provider: "ollama", "anthropic", "static".
	Provider string

	// Model is the generation model name (provider default when empty).
	Model string

	// EmbeddingProvider is the embedding provider: "ollama", "static".
	EmbeddingProvider string

	// EmbeddingModel is the embedding model name (provider default when empty).
	EmbeddingModel string

	// EmbeddingDimension is used by the static embedder.
	EmbeddingDimension int

	// OllamaURL is the Ollama base URL.
	OllamaURL string

	// AnthropicAPIKey authenticates against the Anthropic API.
	AnthropicAPIKey string
}

// NewTextGenerator creates the appropriate TextGenerator for the config.
func NewTextGenerator(cfg FactoryConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicClient(AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.Model}), nil
	case "static":
		return &StaticGenerator{Response: "no model configured"}, nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.OllamaURL, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewEmbeddingClient creates the appropriate EmbeddingClient for the config.
func NewEmbeddingClient(cfg FactoryConfig) (EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case "static":
		return NewStaticEmbedder(cfg.EmbeddingDimension), nil
	case "ollama", "":
		model := cfg.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.OllamaURL, Model: model}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.EmbeddingProvider)
	}
}
