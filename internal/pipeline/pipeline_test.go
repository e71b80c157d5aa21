package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/embed"
	"github.com/aman-oss/photoidx/internal/pipeline"
)

type stubEmbedder struct {
	dim       int
	fail      map[string]bool
	batches   [][]string
	cancelled context.Context
}

func (s *stubEmbedder) IndexID() string   { return "stub-v1" }
func (s *stubEmbedder) Dimensions() int   { return s.dim }
func (s *stubEmbedder) Available(context.Context) bool { return true }
func (s *stubEmbedder) Close() error      { return nil }

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) EmbedImages(ctx context.Context, paths []string, _ int, _ embed.ProgressFunc) ([][]float32, []bool, error) {
	s.batches = append(s.batches, append([]string{}, paths...))
	rows := make([][]float32, len(paths))
	valid := make([]bool, len(paths))
	for i, p := range paths {
		if ctx.Err() != nil {
			return rows[:i], valid[:i], nil
		}
		row := make([]float32, s.dim)
		if s.fail[p] {
			rows[i] = row
			continue
		}
		row[0] = 1
		rows[i] = row
		valid[i] = true
	}
	return rows, valid, nil
}

func TestRunBatchesPaths(t *testing.T) {
	e := &stubEmbedder{dim: 4}
	paths := []string{"a", "b", "c", "d", "e"}

	results, err := pipeline.Run(context.Background(), e, paths, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Len(t, e.batches, 3) // 2, 2, 1
}

func TestRunReportsProgress(t *testing.T) {
	e := &stubEmbedder{dim: 4}
	var phases []string
	progress := func(p embed.Progress) { phases = append(phases, p.Phase) }

	_, err := pipeline.Run(context.Background(), e, []string{"a", "b"}, 8, progress)
	require.NoError(t, err)
	assert.Contains(t, phases, "load")
	assert.Contains(t, phases, "encode_start")
	assert.Contains(t, phases, "encode_done")
}

func TestRunStopsBetweenBatchesOnCancel(t *testing.T) {
	e := &stubEmbedder{dim: 4}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := pipeline.Run(ctx, e, []string{"a", "b", "c"}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatrixFillsZeroRowForInvalid(t *testing.T) {
	results := []pipeline.Result{
		{Path: "ok", Row: []float32{1, 2}, Valid: true},
		{Path: "bad", Row: nil, Valid: false},
	}
	rows, valid := pipeline.Matrix(results, 2)
	assert.Equal(t, []float32{1, 2}, rows[0])
	assert.Equal(t, []float32{0, 0}, rows[1])
	assert.Equal(t, []bool{true, false}, valid)
}

func TestCompactOmitsInvalidRows(t *testing.T) {
	results := []pipeline.Result{
		{Path: "ok", Row: []float32{1, 2}, Valid: true},
		{Path: "bad", Row: nil, Valid: false},
	}
	paths, rows := pipeline.Compact(results)
	assert.Equal(t, []string{"ok"}, paths)
	assert.Len(t, rows, 1)
}

func TestRunFailsFastOnModelError(t *testing.T) {
	e := &failingEmbedder{}
	_, err := pipeline.Run(context.Background(), e, []string{"a"}, 8, nil)
	require.Error(t, err)
}

type failingEmbedder struct{ stubEmbedder }

func (f *failingEmbedder) EmbedImages(context.Context, []string, int, embed.ProgressFunc) ([][]float32, []bool, error) {
	return nil, nil, assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "model unavailable" }
