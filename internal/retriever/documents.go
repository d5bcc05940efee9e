package retriever

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-triage/internal/models"
)

// DefaultExtension selects knowledge-base files when none is configured.
const DefaultExtension = ".txt"

// LoadDocuments reads every regular file in dir (not recursively) whose name ends with ext.
// Each file is one document keyed by its file name. A missing directory yields no documents.
func LoadDocuments(dir, ext string) ([]models.RetrievedDocument, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.RetrievedDocument{}, nil
		}
		return nil, fmt.Errorf("read knowledge base %s: %w", dir, err)
	}

	docs := make([]models.RetrievedDocument, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", entry.Name(), err)
		}
		docs = append(docs, models.RetrievedDocument{Source: entry.Name(), Content: string(data)})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}
