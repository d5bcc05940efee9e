package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	cfg        Config
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient builds a client from cfg. OPENAI_API_KEY is used when cfg.APIKey is empty;
// a key is only mandatory against the default endpoint.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	key, base, err := openAIEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{
		cfg:        cfg,
		apiKey:     key,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeoutOr(cfg.Timeout, 120*time.Second)},
	}, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Model implements Client.
func (c *OpenAIClient) Model() string { return c.cfg.Model }

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  c.cfg.maxTokens(),
		"temperature": c.cfg.Temperature,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	var resp struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", c.apiKey, body, &resp); err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("empty response from OpenAI")
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	return Response{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
	}, nil
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	cfg        Config
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIEmbedder builds an embedder from cfg.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	key, base, err := openAIEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{
		cfg:        cfg,
		apiKey:     key,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeoutOr(cfg.Timeout, 30*time.Second)},
	}, nil
}

// Model implements Embedder.
func (e *OpenAIEmbedder) Model() string { return e.cfg.Model }

// Embed implements Embedder with a single batched request.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	body := map[string]interface{}{"model": e.cfg.Model, "input": texts}
	if err := postJSON(ctx, e.httpClient, e.baseURL+"/embeddings", e.apiKey, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

func openAIEndpoint(cfg Config) (string, string, error) {
	key := cfg.apiKey("OPENAI_API_KEY")
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBaseURL
		if key == "" {
			return "", "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	return key, base, nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("decode OpenAI response: %w", err)
	}
	return nil
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
