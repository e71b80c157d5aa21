// Package caption implements the Captions auxiliary index (spec §4.5.2):
// analogous to OCR but produced by a vision-language captioning capability,
// fused into search as w_img * sim_img + w_cap * sim_cap.
package caption

import (
	"context"

	"github.com/aman-oss/photoidx/internal/aux/textindex"
	"github.com/aman-oss/photoidx/internal/embed"
)

const (
	textFileName   = "cap_texts.json"
	matrixFileName = "cap_embeddings.npy"
)

// Captioner is the external vision-language captioning capability.
type Captioner func(ctx context.Context, path string) (string, error)

// Index wraps the shared text-index plumbing for Captions' file names.
type Index struct {
	*textindex.Index
}

// Open loads the caption cache for a store directory.
func Open(dir string, dim int) (*Index, error) {
	idx, err := textindex.Open(dir, textFileName, matrixFileName, dim)
	if err != nil {
		return nil, err
	}
	return &Index{idx}, nil
}

// Build runs captioner over every path missing from the cache, then
// text-embeds the results. Returns the updated-count.
func (idx *Index) Build(ctx context.Context, embedder embed.Embedder, paths []string, captioner Captioner, progress embed.ProgressFunc) (int, error) {
	return textindex.Build(ctx, idx.Index, embedder, paths, textindex.Extractor(captioner), progress)
}

// DefaultCaptionWeight is spec §4.5.2's w_img + w_cap = 1 weighting default.
const DefaultCaptionWeight = 0.3
