package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wrenware/pulse/internal/cache"
	"github.com/wrenware/pulse/internal/config"
	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/internal/engine"
	"github.com/wrenware/pulse/internal/llm"
	"github.com/wrenware/pulse/internal/memory"
	"github.com/wrenware/pulse/internal/server"
	"github.com/wrenware/pulse/internal/storage"
	"github.com/wrenware/pulse/internal/storage/postgres"
	"github.com/wrenware/pulse/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	llmCfg := llm.FactoryConfig{
		Provider:           cfg.LLM.Provider,
		Model:              modelForProvider(cfg),
		EmbeddingProvider:  cfg.LLM.EmbeddingProvider,
		EmbeddingModel:     cfg.LLM.OllamaEmbeddingModel,
		EmbeddingDimension: cfg.Retrieval.Dimension,
		OllamaURL:          cfg.LLM.OllamaURL,
		AnthropicAPIKey:    cfg.LLM.AnthropicAPIKey,
	}

	generator, err := llm.NewTextGenerator(llmCfg)
	if err != nil {
		log.Fatalf("Failed to initialize text generator: %v", err)
	}
	embedClient, err := llm.NewEmbeddingClient(llmCfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedding client: %v", err)
	}
	embedder, err := embedding.NewGenerator(embedClient, cfg.Retrieval.Dimension)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}

	memories, err := memory.NewService(store, embedder, cfg.Retrieval.MemoryMaxChars)
	if err != nil {
		log.Fatalf("Failed to initialize memory service: %v", err)
	}
	responses, err := cache.NewService(store, cfg.Retrieval.CacheTTL())
	if err != nil {
		log.Fatalf("Failed to initialize response cache: %v", err)
	}
	assembler, err := engine.NewAssembler(store, memories, embedder, engine.Options{
		MaxPerCategory:      cfg.Retrieval.MaxMetricsPerType,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		MemoryMinSimilarity: cfg.Retrieval.MemoryMinSimilarity,
		MaxInsights:         cfg.Retrieval.MaxInsights,
	})
	if err != nil {
		log.Fatalf("Failed to initialize assembler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlers := server.NewHandlers(store, assembler, memories, embedder, generator, responses, server.NewEventHub())
	addr, _, err := server.Start(ctx, cfg, handlers)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Pulse retrieval engine running at http://%s (embedding model %s)", addr, embedder.Model())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give connections time to close
}

// openStore builds the storage backend named by the configuration.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN, cfg.Retrieval.Dimension)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.NewStore(cfg.Storage.DataPath+"/pulse.db", cfg.Retrieval.Dimension)
	}
}

// modelForProvider picks the generation model matching the provider.
func modelForProvider(cfg *config.Config) string {
	if cfg.LLM.Provider == "anthropic" {
		return cfg.LLM.AnthropicModel
	}
	return cfg.LLM.OllamaModel
}
