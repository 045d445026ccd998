package store

import (
	"encoding/json"
	"fmt"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Props are the corpus-level properties persisted once per index. They are
// enough to reproduce the index's tokenization at query time.
type Props struct {
	Format         string   `json:"idx_format"`
	SizeOnDisk     int64    `json:"index_size_on_disk"`
	TermCount      int      `json:"term_count"`
	ReviewCount    int      `json:"review_count"`
	MinTokenLength int      `json:"min_token_length"`
	Stopwords      []string `json:"stopwords"`
	Stemmer        string   `json:"stemmer"`
	DocIDOffset    int      `json:"doc_id_offset,omitempty"`
}

func WriteProps(path string, p Props) error {
	if p.Stopwords == nil {
		p.Stopwords = []string{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index properties: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing index properties: %w", err)
	}
	return nil
}

func ReadProps(path string) (Props, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Props{}, fmt.Errorf("reading index properties: %w", err)
	}
	var p Props
	if err := json.Unmarshal(data, &p); err != nil {
		return Props{}, apperrors.Corruptf("index properties: %v", err)
	}
	return p, nil
}
