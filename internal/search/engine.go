package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
	"github.com/aman-oss/photoidx/internal/npy"
)

// Engine scores a primary embedding matrix (and an optional aligned
// auxiliary matrix) against a query vector, per spec §4.6's five query
// modes.
type Engine struct {
	Paths     []string
	Primary   *npy.Matrix
	Auxiliary *npy.Matrix // OCR or caption matrix, aligned by row to Primary; nil disables fusion
}

// SearchVector dispatches modes 1/2/4 of spec §4.6: a direct query vector
// scored exactly, through an ANN candidate generator, or fused with the
// auxiliary matrix. A nil queryVec implements mode 5 (no query — every
// subset row scores 1.0).
func (e *Engine) SearchVector(ctx context.Context, queryVec []float32, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Primary == nil {
		return []Result{}, nil
	}

	rows := opts.Subset
	if rows == nil {
		rows = allRows(e.Primary.Rows)
	}

	if queryVec == nil {
		return noQueryResults(e.Paths, rows), nil
	}

	var scores map[int]float32
	if opts.ANN != nil {
		cands, err := opts.ANN.Search(ctx, queryVec, topKOrAll(opts.TopK, len(rows)))
		if err != nil {
			// ANN unavailable degrades to exact search over the subset (spec §7).
			scores = e.exactScore(queryVec, rows, opts)
		} else {
			rerankRows := make([]int, 0, len(cands))
			subset := subsetSet(opts.Subset)
			for _, c := range cands {
				if subset == nil || subset[c.Row] {
					rerankRows = append(rerankRows, c.Row)
				}
			}
			scores = e.exactScore(queryVec, rerankRows, opts)
		}
	} else {
		scores = e.exactScore(queryVec, rows, opts)
	}

	return e.topK(scores, opts.TopK), nil
}

// exactScore computes w_img * (E·q) [+ w_aux * (A·q)] for each row.
func (e *Engine) exactScore(queryVec []float32, rows []int, opts Options) map[int]float32 {
	wImg := float32(1)
	var wAux float32
	useAux := e.Auxiliary != nil && opts.FusionWeight > 0
	if useAux {
		wImg = opts.FusionWeight
		wAux = 1 - opts.FusionWeight
	}

	scores := make(map[int]float32, len(rows))
	for _, row := range rows {
		imgScore := dot(e.Primary.Row(row), queryVec)
		if !useAux {
			scores[row] = imgScore
			continue
		}
		auxScore := dot(e.Auxiliary.Row(row), queryVec)
		scores[row] = wImg*imgScore + wAux*auxScore
	}
	return scores
}

func (e *Engine) topK(scores map[int]float32, k int) []Result {
	results := make([]Result, 0, len(scores))
	for row, score := range scores {
		results = append(results, Result{Path: e.Paths[row], Score: score})
	}
	sortResults(results)
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

// sortResults orders strictly by descending score, ties broken by
// ascending path (spec §4.6).
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
}

func noQueryResults(paths []string, rows []int) []Result {
	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = Result{Path: paths[row], Score: 1.0}
	}
	sortResults(results)
	return results
}

// SearchWorkspace searches several same-dimension stores' engines and
// merges their results into one global top-K (spec §4.6 Cross-store). Filters, if any, are the caller's responsibility per
// store since they depend on each store's own metadata. Each store is
// searched concurrently; one store's failure cancels the rest.
func SearchWorkspace(ctx context.Context, engines []*Engine, queryVec []float32, opts Options) ([]Result, error) {
	results := make([][]Result, len(engines))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range engines {
		i, e := i, e
		g.Go(func() error {
			sub := opts
			sub.Subset = nil // each store scores its own full row set before the global merge
			res, err := e.SearchVector(gctx, queryVec, sub)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, photoerrors.InternalError("workspace search", err)
	}

	var all []Result
	for _, res := range results {
		all = append(all, res...)
	}

	sortResults(all)
	if opts.TopK > 0 && opts.TopK < len(all) {
		all = all[:opts.TopK]
	}
	return all, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func subsetSet(subset []int) map[int]bool {
	if subset == nil {
		return nil
	}
	set := make(map[int]bool, len(subset))
	for _, r := range subset {
		set[r] = true
	}
	return set
}

func topKOrAll(k, total int) int {
	if k <= 0 || k > total {
		return total
	}
	return k
}
