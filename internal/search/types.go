// Package search implements Search & Fusion (spec §4.6): exact brute-force
// search, ANN-candidate-then-exact-rerank, hybrid linear fusion of the
// primary image matrix with an auxiliary (OCR/caption) matrix, subset
// restriction, and cross-store workspace search. Grounded on the teacher's
// internal/search/engine.go dispatch shape, replacing RRF-over-BM25/vector
// with spec.md's weighted linear fusion.
package search

import "github.com/aman-oss/photoidx/internal/ann"

// Result is one ranked photo (spec §6.2).
type Result struct {
	Path  string
	Score float32
}

// Options configures a single search call.
type Options struct {
	TopK int

	// Subset restricts scoring to these primary-matrix rows (spec §4.6:
	// workspace searches and filter-first flows). Nil means all rows.
	Subset []int

	// ANN is an already-built candidate-generator backend; nil means exact
	// brute force over the full/subset rows. When set, its candidates are
	// always re-ranked with the exact inner product before return (spec
	// §4.4: ANN is a candidate generator, never the final ranker).
	ANN ann.Backend

	// FusionWeight is w_img in spec §4.6's hybrid mode; w_aux = 1 - FusionWeight.
	// Zero (the default), or a nil Engine.Auxiliary, means image-only scoring.
	FusionWeight float32
}
