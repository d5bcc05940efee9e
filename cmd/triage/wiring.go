package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-triage/internal/agents"
	"github.com/miradorstack/mirador-triage/internal/cache"
	"github.com/miradorstack/mirador-triage/internal/config"
	"github.com/miradorstack/mirador-triage/internal/engine"
	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/retriever"
)

// buildPipeline wires the model clients, embedding cache, knowledge-base index and agents.
// The returned cleanup releases the cache connection.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...engine.Option) (*engine.Pipeline, func(), error) {
	client, err := llm.NewClient(ctx, llm.Config{
		Provider:    cfg.Model.Provider,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Timeout:     cfg.Model.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create model client: %w", err)
	}

	embedder, err := llm.NewEmbedder(ctx, llm.Config{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Name,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   cfg.Embeddings.APIKey,
		Timeout:  cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	cacheProvider := newCacheProvider(ctx, cfg.Cache, logger)
	cleanup := func() {
		if err := cacheProvider.Close(); err != nil {
			logger.Warn("cache close failed", slog.Any("error", err))
		}
	}

	var index retriever.Index
	if cfg.Knowledge.Backend == "weaviate" {
		index = retriever.NewWeaviateIndex(cfg.Weaviate.Endpoint, cfg.Weaviate.APIKey, cfg.Weaviate.ClassName, cfg.Weaviate.Timeout)
	}

	r, err := retriever.New(ctx, retriever.Options{
		Dir:       cfg.Knowledge.DocumentsPath,
		Extension: cfg.Knowledge.Extension,
		Embedder:  llm.NewCachedEmbedder(embedder, cacheProvider, cfg.Cache.EmbeddingTTL, logger),
		Index:     index,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	set, err := agents.NewSet(client, agents.Options{
		PromptsDir:          cfg.Agents.PromptsDir,
		StrictSummaryCounts: cfg.Agents.StrictSummaryCounts,
		Logger:              logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Debug("pipeline configured",
		slog.String("provider", client.Name()),
		slog.String("model", client.Model()),
		slog.String("embedding_model", embedder.Model()),
		slog.String("backend", cfg.Knowledge.Backend),
		slog.Int("documents", r.Len()),
	)

	opts = append([]engine.Option{engine.WithTopK(cfg.Knowledge.TopK)}, opts...)
	return engine.NewPipeline(logger, set.Analyst, set.Diagnoser, r, set.Supervisor, set.Reporter, opts...), cleanup, nil
}

// newCacheProvider prefers Valkey when configured and falls back to an in-process LRU.
func newCacheProvider(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if cfg.Enabled && cfg.Addr != "" {
		provider, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
			KeyPrefix:    "mirador-triage:",
		})
		if err == nil {
			return provider
		}
		logger.Warn("valkey cache unavailable, using in-process cache", slog.Any("error", err))
	}
	return cache.NewMemoryProvider(cfg.MemoryItems, cfg.EmbeddingTTL)
}
