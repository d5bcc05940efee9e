// Package retriever finds knowledge-base documents relevant to a diagnosis.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-triage/internal/llm"
	"github.com/miradorstack/mirador-triage/internal/models"
)

// DefaultTopK is the number of documents returned when the caller passes k <= 0.
const DefaultTopK = 3

// Options configure New.
type Options struct {
	Dir       string
	Extension string
	Embedder  llm.Embedder
	// Index defaults to a MemoryIndex.
	Index  Index
	Logger *slog.Logger
}

// Retriever owns the embedded corpus. It is immutable after New and safe for
// concurrent Retrieve calls when its Index and Embedder are.
type Retriever struct {
	docs     []models.RetrievedDocument
	embedder llm.Embedder
	index    Index
	logger   *slog.Logger
}

// New loads the documents, embeds them in one batch and builds the index.
// An empty corpus succeeds without contacting the embedder.
func New(ctx context.Context, opts Options) (*Retriever, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	index := opts.Index
	if index == nil {
		index = NewMemoryIndex()
	}

	docs, err := LoadDocuments(opts.Dir, opts.Extension)
	if err != nil {
		return nil, err
	}

	r := &Retriever{docs: docs, embedder: opts.Embedder, index: index, logger: logger}
	if len(docs) == 0 {
		logger.Warn("knowledge base is empty", slog.String("dir", opts.Dir))
		return r, nil
	}
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required for %d documents", len(docs))
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := opts.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed knowledge base: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	entries := make([]Entry, len(docs))
	for i, d := range docs {
		entries[i] = Entry{Source: d.Source, Content: d.Content, Vector: vectors[i]}
	}
	if err := index.Build(ctx, entries); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	logger.Info("knowledge base indexed", slog.Int("documents", len(docs)), slog.String("dir", opts.Dir))
	return r, nil
}

// Len reports the corpus size.
func (r *Retriever) Len() int { return len(r.docs) }

// BuildQuery joins the issue titles with " | " in issue order.
func (r *Retriever) BuildQuery(diagnosis models.DiagnosisResult) string {
	return BuildQuery(diagnosis)
}

// BuildQuery is the package-level form of Retriever.BuildQuery.
func BuildQuery(diagnosis models.DiagnosisResult) string {
	titles := make([]string, 0, len(diagnosis.Issues))
	for _, issue := range diagnosis.Issues {
		titles = append(titles, issue.Title)
	}
	return strings.Join(titles, " | ")
}

// Retrieve returns up to k documents most similar to query. k <= 0 means DefaultTopK.
// An empty query returns the first k documents in corpus order.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(r.docs) == 0 {
		return []models.RetrievedDocument{}, nil
	}

	// Embedding APIs reject empty input, so a blank query (no diagnosed issues) falls
	// back to corpus order instead of a similarity ranking.
	if strings.TrimSpace(query) == "" {
		n := k
		if n > len(r.docs) {
			n = len(r.docs)
		}
		return append([]models.RetrievedDocument(nil), r.docs[:n]...), nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	return r.index.Search(ctx, vectors[0], k)
}
