package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/miradorstack/mirador-triage/internal/llm/llmtest"
)

// mock-llm serves an OpenAI-compatible chat and embeddings API with scripted answers
// so the pipeline can run locally without a model provider.
func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	responsesPath := flag.String("responses", "", "JSON file mapping stage (analysis, diagnosis, supervisor, report) to reply text")
	flag.Parse()

	logger := log.New(os.Stdout, "mock-llm ", log.LstdFlags|log.Lmicroseconds)

	responses := llmtest.DefaultResponses()
	if *responsesPath != "" {
		data, err := os.ReadFile(*responsesPath)
		if err != nil {
			logger.Fatalf("read responses: %v", err)
		}
		var overrides map[string]string
		if err := json.Unmarshal(data, &overrides); err != nil {
			logger.Fatalf("parse responses: %v", err)
		}
		for stage, text := range overrides {
			responses[stage] = text
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", llmtest.NewHandler(llmtest.ByStage(responses)))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
