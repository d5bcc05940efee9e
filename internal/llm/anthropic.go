package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	cfg    Config
}

// NewAnthropicClient creates a client. The API key is read from ANTHROPIC_API_KEY
// when cfg.APIKey is empty. SDK retries are disabled.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	key := cfg.apiKey("ANTHROPIC_API_KEY")
	if key == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &AnthropicClient{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

// Name implements Client.
func (c *AnthropicClient) Name() string { return ProviderAnthropic }

// Model implements Client.
func (c *AnthropicClient) Model() string { return c.cfg.Model }

// Complete implements Client. Anthropic has no JSON response mode; req.JSON is ignored and
// the prompt's format instructions carry the shape.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.maxTokens()),
		Temperature: anthropic.Float(c.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var parts []string
	for i := range msg.Content {
		block := &msg.Content[i]
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return Response{}, fmt.Errorf("empty response from Anthropic (stop reason %s)", msg.StopReason)
	}

	return Response{
		Text:  strings.Join(parts, ""),
		Model: string(msg.Model),
		Usage: Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
	}, nil
}
