package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-triage/internal/cache"
)

// CachedEmbedder memoises vectors per model and text in a cache.Provider.
type CachedEmbedder struct {
	next   Embedder
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder wraps next. A nil provider disables caching.
func NewCachedEmbedder(next Embedder, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{next: next, cache: provider, ttl: ttl, logger: logger}
}

// Model implements Embedder.
func (c *CachedEmbedder) Model() string { return c.next.Model() }

// Embed returns cached vectors where present and embeds the rest in one batch.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))

	for i, text := range texts {
		data, err := c.cache.Get(ctx, c.key(text))
		if err != nil {
			if !errors.Is(err, cache.ErrCacheMiss) {
				c.logger.Debug("embedding cache read failed", slog.Any("error", err))
			}
			missing = append(missing, i)
			continue
		}
		vec, ok := cache.DecodeVector(data)
		if !ok {
			missing = append(missing, i)
			continue
		}
		vectors[i] = vec
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	batch := make([]string, len(missing))
	for j, idx := range missing {
		batch[j] = texts[idx]
	}
	fresh, err := c.next.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(fresh), len(batch))
	}

	for j, idx := range missing {
		vectors[idx] = fresh[j]
		if err := c.cache.Set(ctx, c.key(texts[idx]), cache.EncodeVector(fresh[j]), c.ttl); err != nil {
			c.logger.Debug("embedding cache write failed", slog.Any("error", err))
		}
	}
	c.logger.Debug("embedded texts", slog.Int("cached", len(texts)-len(missing)), slog.Int("fetched", len(missing)))
	return vectors, nil
}

func (c *CachedEmbedder) key(text string) string {
	return cache.EmbeddingKey(c.next.Model(), text)
}
