// Package llm is the boundary to hosted text-generation and embedding models.
package llm

import (
	"context"
	"os"
	"time"
)

// Request is a single system + user exchange with a model.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider for a JSON-only response where the API supports it.
	// The caller still validates the output.
	JSON bool
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the model's complete text answer.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client issues one synchronous completion request per call. Implementations must not retry.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
	Model() string
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Config holds provider settings shared by clients and embedders.
type Config struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

func (c Config) apiKey(envVars ...string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 4096
	}
	return c.MaxTokens
}
