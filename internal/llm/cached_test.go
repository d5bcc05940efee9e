package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-triage/internal/cache"
)

type countingEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (c *countingEmbedder) Model() string { return "fake" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0.5}
	}
	return out, nil
}

func TestCachedEmbedderOnlyFetchesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	provider := cache.NewMemoryProvider(16, time.Hour)
	emb := NewCachedEmbedder(inner, provider, time.Hour, nil)
	ctx := context.Background()

	first, err := emb.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0.5}, {2, 0.5}}, first)

	second, err := emb.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 0.5}, {3, 0.5}, {1, 0.5}}, second)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"ccc"}, inner.inputs[1])

	_, err = emb.Embed(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("quota exceeded")}
	emb := NewCachedEmbedder(inner, nil, time.Hour, nil)

	_, err := emb.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
