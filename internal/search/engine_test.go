package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/ann"
	"github.com/aman-oss/photoidx/internal/npy"
	"github.com/aman-oss/photoidx/internal/search"
)

func matrixFromRows(rows [][]float32) *npy.Matrix {
	m := npy.NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		copy(m.Row(i), r)
	}
	return m
}

func TestSearchVectorExactRanksByDotProduct(t *testing.T) {
	e := &search.Engine{
		Paths:   []string{"/a.jpg", "/b.jpg", "/c.jpg"},
		Primary: matrixFromRows([][]float32{{1, 0}, {0, 1}, {0.7, 0.7}}),
	}

	results, err := e.SearchVector(context.Background(), []float32{1, 0}, search.Options{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/a.jpg", results[0].Path)
}

func TestSearchVectorNoQueryReturnsAllAtScoreOne(t *testing.T) {
	e := &search.Engine{
		Paths:   []string{"/b.jpg", "/a.jpg"},
		Primary: matrixFromRows([][]float32{{1, 0}, {0, 1}}),
	}

	results, err := e.SearchVector(context.Background(), nil, search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/a.jpg", results[0].Path, "ties break by ascending path")
	assert.Equal(t, float32(1.0), results[0].Score)
}

func TestSearchVectorHybridFusion(t *testing.T) {
	e := &search.Engine{
		Paths:     []string{"/a.jpg", "/b.jpg"},
		Primary:   matrixFromRows([][]float32{{1, 0}, {0, 1}}),
		Auxiliary: matrixFromRows([][]float32{{0, 1}, {1, 0}}),
	}

	results, err := e.SearchVector(context.Background(), []float32{1, 0}, search.Options{FusionWeight: 0.5})
	require.NoError(t, err)
	// Both rows score 0.5*1 + 0.5*0 = 0.5 vs 0.5*0 + 0.5*1 = 0.5: tie, broken by path.
	assert.Equal(t, "/a.jpg", results[0].Path)
}

func TestSearchVectorSubsetRestrictsScoring(t *testing.T) {
	e := &search.Engine{
		Paths:   []string{"/a.jpg", "/b.jpg", "/c.jpg"},
		Primary: matrixFromRows([][]float32{{1, 0}, {1, 0}, {1, 0}}),
	}

	results, err := e.SearchVector(context.Background(), []float32{1, 0}, search.Options{Subset: []int{1}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/b.jpg", results[0].Path)
}

func TestSearchWorkspaceStacksStores(t *testing.T) {
	e1 := &search.Engine{Paths: []string{"/s1/a.jpg"}, Primary: matrixFromRows([][]float32{{1, 0}})}
	e2 := &search.Engine{Paths: []string{"/s2/a.jpg"}, Primary: matrixFromRows([][]float32{{0, 1}})}

	results, err := search.SearchWorkspace(context.Background(), []*search.Engine{e1, e2}, []float32{1, 0}, search.Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/s1/a.jpg", results[0].Path)
}

var _ ann.Backend // referenced to keep the import path available for future ANN-dispatch tests
