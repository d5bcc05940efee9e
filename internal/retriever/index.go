package retriever

import (
	"context"
	"math"
	"sort"

	"github.com/miradorstack/mirador-triage/internal/models"
)

// Entry is one embedded document handed to an Index.
type Entry struct {
	Source  string
	Content string
	Vector  []float32
}

// Index stores embedded documents and answers nearest-neighbour queries.
type Index interface {
	// Build replaces the index contents with entries.
	Build(ctx context.Context, entries []Entry) error
	// Search returns up to k documents ordered by descending similarity, ties by source.
	Search(ctx context.Context, vector []float32, k int) ([]models.RetrievedDocument, error)
}

// MemoryIndex is an exact brute-force cosine index held in process.
type MemoryIndex struct {
	entries []Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Build implements Index.
func (m *MemoryIndex) Build(_ context.Context, entries []Entry) error {
	m.entries = append([]Entry(nil), entries...)
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, k int) ([]models.RetrievedDocument, error) {
	docs := make([]models.RetrievedDocument, 0, len(m.entries))
	for _, e := range m.entries {
		docs = append(docs, models.RetrievedDocument{
			Source:  e.Source,
			Content: e.Content,
			Score:   cosine(vector, e.Vector),
		})
	}
	rank(docs)
	if k < len(docs) {
		docs = docs[:k]
	}
	return docs, nil
}

func rank(docs []models.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].Source < docs[j].Source
	})
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
