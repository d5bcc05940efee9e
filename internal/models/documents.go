package models

// RetrievedDocument is a knowledge-base document returned by the retriever.
type RetrievedDocument struct {
	Source  string
	Content string
	// Score is the similarity to the query; zero when no ranking took place.
	Score float64
}

// ContextEntry is the source/content pair handed to the supervisor and report stages.
type ContextEntry struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// ContextFromDocuments reshapes retrieved documents into context entries, preserving order.
func ContextFromDocuments(docs []RetrievedDocument) []ContextEntry {
	entries := make([]ContextEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, ContextEntry{Source: doc.Source, Content: doc.Content})
	}
	return entries
}
