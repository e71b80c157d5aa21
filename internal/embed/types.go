// Package embed defines the Embedder capability spec §1 treats as an
// external collaborator, plus two concrete implementations used for
// testing and local inference: a deterministic static backend and an
// ONNX-backed CLIP-family backend.
package embed

import (
	"context"
	"math"
)

// Embedding size and batching bounds shared by all backends.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32
)

// Progress describes one EmbeddingPipeline progress tick (spec §4.2).
type Progress struct {
	Phase string // "load" | "encode_start" | "encode_done"
	Done  int
	Total int
	Valid int
}

// ProgressFunc receives Progress updates during a batch embedding run.
type ProgressFunc func(Progress)

// Embedder is the single capability spec.md §9 re-architects the source's
// "attribute-carrying embedder" pattern into: an index namespace tag, a
// fixed dimension, and L2-normalized text/image encoders.
type Embedder interface {
	// IndexID identifies the embedding namespace; used to derive IndexKey
	// (spec §3). Changing model implies a new IndexID and a new store dir.
	IndexID() string

	// Dimensions returns the fixed output vector length D for this embedder.
	Dimensions() int

	// EmbedText returns an L2-normalized embedding for a text query.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImages decodes and embeds each path in order, reporting progress.
	// A path that cannot be decoded gets a zero row in the returned matrix;
	// its index is omitted from valid. Honors ctx cancellation between
	// images, returning whatever rows were completed so far (spec §4.2:
	// a partial batch is never mixed with a later retry by the caller).
	EmbedImages(ctx context.Context, paths []string, batchSize int, progress ProgressFunc) (rows [][]float32, valid []bool, err error)

	// Available reports whether the backend is ready to serve requests.
	Available(ctx context.Context) bool

	// Close releases any backend resources (model sessions, file handles).
	Close() error
}

// normalizeVector L2-normalizes v in place and returns it. A zero vector is
// returned unchanged, matching the "zero row means missing" convention for
// auxiliary matrices (spec §3 invariant 2).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
	return v
}
