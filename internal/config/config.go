// Package config provides configuration management for Pulse.
// Settings load from environment variables with the PULSE_ prefix, with
// sensible defaults for every option. An optional YAML file (PULSE_CONFIG)
// supplies overrides for deployments that prefer files over environments;
// environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Pulse retrieval engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7171)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // SQLite data directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // PostgreSQL connection string
}

// LLMConfig contains embedding and generation provider configuration.
type LLMConfig struct {
	Provider             string `yaml:"provider"`               // Generation provider: ollama, anthropic, static (default: ollama)
	EmbeddingProvider    string `yaml:"embedding_provider"`     // Embedding provider: ollama, static (default: ollama)
	OllamaURL            string `yaml:"ollama_url"`             // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string `yaml:"ollama_model"`           // Ollama generation model (default: qwen2.5:7b)
	OllamaEmbeddingModel string `yaml:"ollama_embedding_model"` // Ollama embedding model (default: nomic-embed-text)
	AnthropicAPIKey      string `yaml:"anthropic_api_key"`      // Anthropic API key
	AnthropicModel       string `yaml:"anthropic_model"`        // Anthropic model (default: claude-3-5-sonnet-20241022)
}

// RetrievalConfig tunes the retrieval and caching pipeline.
type RetrievalConfig struct {
	Dimension           int     `yaml:"dimension"`             // Embedding vector length (default: 384)
	SimilarityThreshold float64 `yaml:"similarity_threshold"`  // Minimum metric similarity (default: 0.7)
	MaxMetricsPerType   int     `yaml:"max_metrics_per_type"`  // Per-category result cap (default: 5)
	MaxInsights         int     `yaml:"max_insights"`          // Recent-insight cap (default: 10)
	MemoryMaxChars      int     `yaml:"memory_max_chars"`      // Memory document size cap (default: 10000)
	MemoryMinSimilarity float64 `yaml:"memory_min_similarity"` // Memory recall threshold (default: 0.6)
	CacheTTLHours       int     `yaml:"cache_ttl_hours"`       // Response cache TTL (default: 24)
}

// SecurityConfig contains authentication and rate-limit settings.
type SecurityConfig struct {
	APIToken       string  `yaml:"api_token"`        // Bearer token; empty disables auth
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`   // Requests per second, one bucket for all clients (default: 10)
	RateLimitBurst int     `yaml:"rate_limit_burst"` // Burst allowance (default: 20)
}

// CacheTTL returns the cache TTL as a duration.
func (r RetrievalConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLHours) * time.Hour
}

// LoadConfig loads configuration: defaults, then the optional YAML file
// named by PULSE_CONFIG, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("PULSE_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Retrieval.Dimension <= 0 {
		return nil, fmt.Errorf("config: dimension must be positive, got %d", cfg.Retrieval.Dimension)
	}
	if cfg.Storage.Engine == "postgres" && cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("config: postgres engine requires PULSE_POSTGRES_DSN")
	}
	return cfg, nil
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 7171,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		LLM: LLMConfig{
			Provider:             "ollama",
			EmbeddingProvider:    "ollama",
			OllamaURL:            "http://localhost:11434",
			OllamaModel:          "qwen2.5:7b",
			OllamaEmbeddingModel: "nomic-embed-text",
			AnthropicModel:       "claude-3-5-sonnet-20241022",
		},
		Retrieval: RetrievalConfig{
			Dimension:           384,
			SimilarityThreshold: 0.7,
			MaxMetricsPerType:   5,
			MaxInsights:         10,
			MemoryMaxChars:      10_000,
			MemoryMinSimilarity: 0.6,
			CacheTTLHours:       24,
		},
		Security: SecurityConfig{
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
	}
}

// applyEnv overlays PULSE_-prefixed environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PULSE_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("PULSE_HOST", cfg.Server.Host)

	cfg.Storage.Engine = getEnv("PULSE_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("PULSE_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("PULSE_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.LLM.Provider = getEnv("PULSE_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.EmbeddingProvider = getEnv("PULSE_EMBEDDING_PROVIDER", cfg.LLM.EmbeddingProvider)
	cfg.LLM.OllamaURL = getEnv("PULSE_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("PULSE_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OllamaEmbeddingModel = getEnv("PULSE_EMBEDDING_MODEL", cfg.LLM.OllamaEmbeddingModel)
	cfg.LLM.AnthropicAPIKey = getEnv("PULSE_ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicModel = getEnv("PULSE_ANTHROPIC_MODEL", cfg.LLM.AnthropicModel)

	cfg.Retrieval.Dimension = getEnvInt("PULSE_DIMENSION", cfg.Retrieval.Dimension)
	cfg.Retrieval.SimilarityThreshold = getEnvFloat("PULSE_SIMILARITY_THRESHOLD", cfg.Retrieval.SimilarityThreshold)
	cfg.Retrieval.MaxMetricsPerType = getEnvInt("PULSE_MAX_METRICS_PER_TYPE", cfg.Retrieval.MaxMetricsPerType)
	cfg.Retrieval.MaxInsights = getEnvInt("PULSE_MAX_INSIGHTS", cfg.Retrieval.MaxInsights)
	cfg.Retrieval.MemoryMaxChars = getEnvInt("PULSE_MEMORY_MAX_CHARS", cfg.Retrieval.MemoryMaxChars)
	cfg.Retrieval.MemoryMinSimilarity = getEnvFloat("PULSE_MEMORY_MIN_SIMILARITY", cfg.Retrieval.MemoryMinSimilarity)
	cfg.Retrieval.CacheTTLHours = getEnvInt("PULSE_CACHE_TTL_HOURS", cfg.Retrieval.CacheTTLHours)

	cfg.Security.APIToken = getEnv("PULSE_API_TOKEN", cfg.Security.APIToken)
	cfg.Security.RateLimitRPS = getEnvFloat("PULSE_RATE_LIMIT_RPS", cfg.Security.RateLimitRPS)
	cfg.Security.RateLimitBurst = getEnvInt("PULSE_RATE_LIMIT_BURST", cfg.Security.RateLimitBurst)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparsable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparsable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
