// Package ocr implements the OCR auxiliary index (spec §4.5.1): cached
// per-path recognized text plus a text-embedding matrix fused with the
// primary image matrix during search.
package ocr

import (
	"context"

	"github.com/aman-oss/photoidx/internal/aux/textindex"
	"github.com/aman-oss/photoidx/internal/embed"
)

const (
	textFileName   = "ocr_texts.json"
	matrixFileName = "ocr_embeddings.npy"
)

// Recognizer is the external OCR capability: given a path and a language
// hint list, return concatenated detected strings (empty if none found).
type Recognizer func(ctx context.Context, path string, languages []string) (string, error)

// Index wraps the shared text-index plumbing for OCR's file names.
type Index struct {
	*textindex.Index
}

// Open loads the OCR cache for a store directory.
func Open(dir string, dim int) (*Index, error) {
	idx, err := textindex.Open(dir, textFileName, matrixFileName, dim)
	if err != nil {
		return nil, err
	}
	return &Index{idx}, nil
}

// Build runs recognizer over every path missing from the cache, then
// text-embeds the results (spec §4.5.1). Returns the updated-count.
func (idx *Index) Build(ctx context.Context, embedder embed.Embedder, paths []string, languages []string, recognizer Recognizer, progress embed.ProgressFunc) (int, error) {
	extract := func(ctx context.Context, path string) (string, error) {
		return recognizer(ctx, path, languages)
	}
	return textindex.Build(ctx, idx.Index, embedder, paths, extract, progress)
}

// DefaultTextWeight is spec §4.5.1's default w_txt (w_img + w_txt = 1).
const DefaultTextWeight = 0.3
