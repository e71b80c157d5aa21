// Package pipeline implements EmbeddingPipeline (spec §4.2): the batching,
// progress-reporting, and cooperative-cancellation layer sitting between a
// path list and an embed.Embedder. Per-image decode/embed work is delegated
// to the Embedder itself; this package owns how paths are chunked into
// batches, how batch-local progress is folded into a running total, and
// what happens to a batch that is interrupted mid-flight.
package pipeline

import (
	"context"

	"github.com/aman-oss/photoidx/internal/embed"
	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

// Result is one path's outcome from a pipeline run.
type Result struct {
	Path  string
	Row   []float32
	Valid bool
}

// Run embeds paths in batches of batchSize (0 picks embed.DefaultBatchSize),
// reporting progress through progress and honoring ctx cancellation between
// batches. If ctx is cancelled mid-run, results already committed from
// completed batches are returned with a nil error; the caller decides
// whether a partial run is acceptable (spec §4.2: a partial batch is
// discarded, never merged with a later retry — so the last, interrupted
// batch's partial rows are dropped here rather than kept).
func Run(ctx context.Context, embedder embed.Embedder, paths []string, batchSize int, progress embed.ProgressFunc) ([]Result, error) {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	total := len(paths)
	results := make([]Result, 0, total)
	done, valid := 0, 0

	emit := func(phase string) {
		if progress != nil {
			progress(embed.Progress{Phase: phase, Done: done, Total: total, Valid: valid})
		}
	}

	emit("load")

	for start := 0; start < total; start += batchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		batchPaths := paths[start:end]

		emit("encode_start")

		rows, validFlags, err := embedder.EmbedImages(ctx, batchPaths, batchSize, nil)
		if err != nil {
			return results, photoerrors.EmbedderUnavailable("embed batch", err)
		}

		// A batch interrupted mid-flight returns fewer rows than requested;
		// that partial result is discarded outright rather than appended.
		if len(rows) < len(batchPaths) {
			break
		}

		for i, path := range batchPaths {
			ok := i < len(validFlags) && validFlags[i]
			results = append(results, Result{Path: path, Row: rows[i], Valid: ok})
			done++
			if ok {
				valid++
			}
		}

		emit("encode_done")
	}

	return results, nil
}

// Matrix materializes rows into the non-compact form: every path gets a
// row, a zero row standing in for a failed embed (spec §4.2).
func Matrix(results []Result, dim int) ([][]float32, []bool) {
	rows := make([][]float32, len(results))
	valid := make([]bool, len(results))
	for i, r := range results {
		if r.Valid {
			rows[i] = r.Row
		} else {
			rows[i] = make([]float32, dim)
		}
		valid[i] = r.Valid
	}
	return rows, valid
}

// Compact materializes the compact form: failed embeds are omitted rather
// than represented as zero rows, along with the paths that survived.
func Compact(results []Result) (paths []string, rows [][]float32) {
	for _, r := range results {
		if !r.Valid {
			continue
		}
		paths = append(paths, r.Path)
		rows = append(rows, r.Row)
	}
	return paths, rows
}
