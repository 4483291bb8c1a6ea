package corpus

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

const documentExt = ".json"

// Document is one record file of the corpus.
type Document struct {
	// Identifier is the file name without its extension. It matches the
	// document's entry in the corpus summary.
	Identifier string
	Path       string
}

// Documents lists the record documents in dir, sorted by identifier.
func Documents(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "documents: read %q", dir)
	}

	var documents []Document
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, documentExt) {
			continue
		}
		documents = append(documents, Document{
			Identifier: strings.TrimSuffix(name, documentExt),
			Path:       filepath.Join(dir, name),
		})
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].Identifier < documents[j].Identifier
	})
	return documents, nil
}
