// Package filter implements the Filter Pipeline and RPN query-string mini
// language (spec §4.7). docindex.go is the bare-text half: a bleve index
// over caption + ocr_text + filename, grounded on the teacher's
// internal/store/bm25.go bleve wiring, used by unquoted/unfielded terms.
// Quoted literals and structured predicates bypass this index and check
// raw cached text directly (spec's literal-substring requirement).
package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// docFields is the bleve document shape: one combined-text field.
type docFields struct {
	Content string `json:"content"`
}

// DocIndex is an in-memory bleve index over photos' combined document text
// (caption + "\n" + ocr_text + "\n" + filename).
type DocIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewDocIndex builds a fresh in-memory bare-text index. docs maps path to
// combined document text.
func NewDocIndex(docs map[string]string) (*DocIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("filter: create bare-text index: %w", err)
	}

	batch := idx.NewBatch()
	for path, text := range docs {
		if err := batch.Index(path, docFields{Content: text}); err != nil {
			return nil, fmt.Errorf("filter: index document %s: %w", path, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("filter: execute batch: %w", err)
	}
	return &DocIndex{index: idx}, nil
}

// Matches returns the set of paths whose document matches term (bleve's
// default analyzer: case-insensitive token match).
func (d *DocIndex) Matches(term string) (map[string]bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	q := bleve.NewMatchQuery(term)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = 1_000_000

	result, err := d.index.SearchInContext(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("filter: bare-text search: %w", err)
	}

	out := make(map[string]bool, len(result.Hits))
	for _, hit := range result.Hits {
		out[hit.ID] = true
	}
	return out, nil
}

// Close releases the underlying index.
func (d *DocIndex) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index.Close()
}
