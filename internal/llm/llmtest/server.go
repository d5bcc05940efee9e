// Package llmtest provides an in-process OpenAI-compatible model server for tests and local runs.
package llmtest

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode"
)

// Agent stages, recognised from the human message prefix.
const (
	StageAnalysis  = "analysis"
	StageDiagnosis = "diagnosis"
	StageSupervise = "supervisor"
	StageReport    = "report"
)

// Dimensions is the length of vectors returned by the embeddings endpoint.
const Dimensions = 64

// ChatRequest is what the handler recorded for one chat completion call.
type ChatRequest struct {
	Model  string
	System string
	Prompt string
	JSON   bool
}

// Responder produces the assistant text for a chat request.
type Responder func(req ChatRequest) (string, error)

// Handler serves /chat/completions and /embeddings with or without a /v1 prefix.
type Handler struct {
	respond Responder

	mu         sync.Mutex
	chats      []ChatRequest
	embedCalls int
}

// NewHandler returns a handler using respond; nil means Default().
func NewHandler(respond Responder) *Handler {
	if respond == nil {
		respond = Default()
	}
	return &Handler{respond: respond}
}

// Chats returns the recorded chat requests in arrival order.
func (h *Handler) Chats() []ChatRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ChatRequest(nil), h.chats...)
}

// EmbedCalls returns how many embedding requests were served.
func (h *Handler) EmbedCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.embedCalls
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		h.chat(w, r)
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		h.embeddings(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := ChatRequest{Model: body.Model, JSON: body.ResponseFormat != nil && body.ResponseFormat.Type == "json_object"}
	for _, m := range body.Messages {
		switch m.Role {
		case "system":
			req.System = m.Content
		case "user":
			req.Prompt = m.Content
		}
	}

	h.mu.Lock()
	h.chats = append(h.chats, req)
	h.mu.Unlock()

	text, err := h.respond(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]interface{}{
		"id":     fmt.Sprintf("chatcmpl-%d", len(h.Chats())),
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": text},
		}},
		"usage": map[string]int{
			"prompt_tokens":     len(strings.Fields(req.System + " " + req.Prompt)),
			"completion_tokens": len(strings.Fields(text)),
		},
	})
}

func (h *Handler) embeddings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	h.embedCalls++
	h.mu.Unlock()

	data := make([]map[string]interface{}, 0, len(body.Input))
	for i, text := range body.Input {
		data = append(data, map[string]interface{}{"object": "embedding", "index": i, "embedding": Vector(text)})
	}
	writeJSON(w, map[string]interface{}{"object": "list", "model": body.Model, "data": data})
}

// Server is a Handler behind an httptest.Server.
type Server struct {
	*Handler
	srv *httptest.Server
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB, respond Responder) *Server {
	t.Helper()
	h := NewHandler(respond)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Server{Handler: h, srv: srv}
}

// BaseURL is the OpenAI-style base URL, including /v1.
func (s *Server) BaseURL() string { return s.srv.URL + "/v1" }

// StageOf identifies which agent issued a prompt.
func StageOf(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Logs:"):
		return StageAnalysis
	case strings.HasPrefix(prompt, "Log analysis result:"):
		return StageDiagnosis
	case strings.HasPrefix(prompt, "Diagnosis data:"):
		return StageReport
	case strings.HasPrefix(prompt, "Diagnosis:"):
		return StageSupervise
	default:
		return ""
	}
}

// ByStage answers each stage with a fixed text. Unknown stages fail.
func ByStage(responses map[string]string) Responder {
	return func(req ChatRequest) (string, error) {
		stage := StageOf(req.Prompt)
		text, ok := responses[stage]
		if !ok {
			return "", fmt.Errorf("no scripted response for stage %q", stage)
		}
		return text, nil
	}
}

// DefaultResponses is a coherent set of answers for a database outage.
func DefaultResponses() map[string]string {
	return map[string]string{
		StageAnalysis: `{"summary":{"total_lines":6,"error_count":3,"warning_count":1},` +
			`"errors":[{"type":"DatabaseConnectionError","count":3,"components":["api","db"]}],` +
			`"anomalies":["connection pool exhausted"]}`,
		StageDiagnosis: `{"issues":[{"title":"Database connection exhaustion",` +
			`"description":"The API cannot obtain connections from the pool.",` +
			`"possible_causes":["connection leak","pool too small"],` +
			`"impact":"Requests fail with 500 errors","severity":"high","affected_components":["api","db"]}],` +
			`"overall_assessment":"The service is degraded by database connectivity failures."}`,
		StageSupervise: `{"decision":"continue","rationale":"Diagnosis is consistent with the log analysis.","confidence":0.9}`,
		StageReport: "# Incident Report\n\n## Summary\n\nDatabase connection exhaustion degraded the API.\n\n" +
			"## Recommendations\n\n- Increase the pool size\n- Audit connection handling\n",
	}
}

// Default returns ByStage(DefaultResponses()).
func Default() Responder { return ByStage(DefaultResponses()) }

// Vector is a deterministic bag-of-words embedding: hashed token counts, L2 normalised.
// Texts sharing words are closer than texts that do not.
func Vector(text string) []float32 {
	vec := make([]float32, Dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%Dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": "server_error"},
	})
}
