package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-triage/internal/models"
)

// WeaviateIndex keeps the knowledge base in a Weaviate class with a flat (exact) vector index.
// Vectors are supplied by the caller; the class has no vectorizer.
type WeaviateIndex struct {
	endpoint   string
	apiKey     string
	className  string
	httpClient *http.Client
}

// NewWeaviateIndex constructs a Weaviate-backed index.
func NewWeaviateIndex(endpoint, apiKey, className string, timeout time.Duration) *WeaviateIndex {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if className == "" {
		className = "KnowledgeDocument"
	}
	return &WeaviateIndex{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		className:  className,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ObjectID derives a stable object UUID from the class and document source.
func (w *WeaviateIndex) ObjectID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mirador-triage/"+w.className+"/"+source)).String()
}

// Build drops and recreates the class, then batch-imports entries.
func (w *WeaviateIndex) Build(ctx context.Context, entries []Entry) error {
	if w.endpoint == "" {
		return fmt.Errorf("weaviate endpoint not configured")
	}

	status, body, err := w.do(ctx, http.MethodDelete, "/v1/schema/"+w.className, nil)
	if err != nil {
		return fmt.Errorf("drop weaviate class: %w", err)
	}
	if status != http.StatusOK && status != http.StatusNotFound && status != http.StatusNoContent {
		return fmt.Errorf("drop weaviate class failed: %s", strings.TrimSpace(string(body)))
	}

	class := map[string]interface{}{
		"class":           w.className,
		"vectorizer":      "none",
		"vectorIndexType": "flat",
		"vectorIndexConfig": map[string]interface{}{
			"distance": "cosine",
		},
		"properties": []map[string]interface{}{
			{"name": "source", "dataType": []string{"text"}},
			{"name": "content", "dataType": []string{"text"}},
		},
	}
	status, body, err = w.do(ctx, http.MethodPost, "/v1/schema", class)
	if err != nil {
		return fmt.Errorf("create weaviate class: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("create weaviate class failed: %s", strings.TrimSpace(string(body)))
	}

	if len(entries) == 0 {
		return nil
	}

	objects := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		objects = append(objects, map[string]interface{}{
			"class":      w.className,
			"id":         w.ObjectID(e.Source),
			"properties": map[string]interface{}{"source": e.Source, "content": e.Content},
			"vector":     e.Vector,
		})
	}
	status, body, err = w.do(ctx, http.MethodPost, "/v1/batch/objects", map[string]interface{}{"objects": objects})
	if err != nil {
		return fmt.Errorf("import documents: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("import documents failed: %s", strings.TrimSpace(string(body)))
	}

	var results []struct {
		ID     string `json:"id"`
		Result struct {
			Errors *struct {
				Error []struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"errors"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return fmt.Errorf("decode batch response: %w", err)
	}
	for _, r := range results {
		if r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("import document %s failed: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search implements Index with a nearVector GraphQL query. Scores are 1 - cosine distance.
func (w *WeaviateIndex) Search(ctx context.Context, vector []float32, k int) ([]models.RetrievedDocument, error) {
	if w.endpoint == "" {
		return nil, fmt.Errorf("weaviate endpoint not configured")
	}

	gql := map[string]interface{}{
		"query": fmt.Sprintf(`{
          Get {
            %s(
              nearVector: {vector: %s}
              limit: %d
            ) {
              source
              content
              _additional { distance }
            }
          }
        }`, w.className, formatVector(vector), k),
	}

	status, body, err := w.do(ctx, http.MethodPost, "/v1/graphql", gql)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("weaviate query failed: %s", strings.TrimSpace(string(body)))
	}

	var response struct {
		Data struct {
			Get map[string][]struct {
				Source     string `json:"source"`
				Content    string `json:"content"`
				Additional struct {
					Distance float64 `json:"distance"`
				} `json:"_additional"`
			} `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode weaviate response: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query error: %s", response.Errors[0].Message)
	}

	hits := response.Data.Get[w.className]
	docs := make([]models.RetrievedDocument, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, models.RetrievedDocument{
			Source:  h.Source,
			Content: h.Content,
			Score:   1 - h.Additional.Distance,
		})
	}
	rank(docs)
	if k < len(docs) {
		docs = docs[:k]
	}
	return docs, nil
}

func (w *WeaviateIndex) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.endpoint+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func formatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
