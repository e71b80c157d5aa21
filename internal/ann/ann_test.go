package ann_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/ann"
	"github.com/aman-oss/photoidx/internal/npy"
)

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	mag := math.Sqrt(sum)
	if mag == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
}

func randomMatrix(rows, cols int, seed int64) *npy.Matrix {
	r := rand.New(rand.NewSource(seed))
	m := npy.NewMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = float32(r.NormFloat64())
		}
		normalize(row)
	}
	return m
}

func TestFlatFindsExactNearestNeighbor(t *testing.T) {
	m := randomMatrix(50, 16, 1)
	f := ann.NewFlat()
	require.NoError(t, f.Build(context.Background(), m, 1))

	query := make([]float32, 16)
	copy(query, m.Row(7))

	results, err := f.Search(context.Background(), query, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 7, results[0].Row)
	assert.InDelta(t, 1.0, results[0].RawScore, 1e-4)
}

func TestFlatStatusReflectsSnapshot(t *testing.T) {
	m := randomMatrix(10, 8, 2)
	f := ann.NewFlat()
	require.NoError(t, f.Build(context.Background(), m, 42))
	status := f.Status()
	assert.True(t, status.Exists)
	assert.Equal(t, 10, status.Size)
	assert.Equal(t, int64(42), status.Snapshot)
	assert.True(t, status.Stale(43))
	assert.False(t, status.Stale(42))
}

func TestFlatSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := randomMatrix(20, 12, 3)
	f := ann.NewFlat()
	require.NoError(t, f.Build(context.Background(), m, 5))
	require.NoError(t, f.Save(dir))

	loaded := ann.NewFlat()
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, f.Status(), loaded.Status())
}

func TestGraphFindsApproximateNearestNeighbor(t *testing.T) {
	m := randomMatrix(200, 32, 4)
	g := ann.NewGraph(ann.DefaultGraphTuning())
	require.NoError(t, g.Build(context.Background(), m, 1))

	query := make([]float32, 32)
	copy(query, m.Row(17))

	results, err := g.Search(context.Background(), query, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, r := range results {
		if r.Row == 17 {
			found = true
		}
	}
	assert.True(t, found, "exact match should appear among its own nearest neighbors")
}

func TestGraphSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := randomMatrix(60, 16, 5)
	g := ann.NewGraph(ann.DefaultGraphTuning())
	require.NoError(t, g.Build(context.Background(), m, 9))
	require.NoError(t, g.Save(dir))

	loaded := ann.NewGraph(ann.DefaultGraphTuning())
	require.NoError(t, loaded.Load(dir))
	status := loaded.Status()
	assert.True(t, status.Exists)
	assert.Equal(t, 60, status.Size)
	assert.Equal(t, int64(9), status.Snapshot)
}

func TestTreeSearchReturnsCandidatesIncludingNeighbors(t *testing.T) {
	m := randomMatrix(300, 24, 6)
	tr := ann.NewTree(8)
	require.NoError(t, tr.Build(context.Background(), m, 1))

	query := make([]float32, 24)
	copy(query, m.Row(42))

	results, err := tr.Search(context.Background(), query, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, r := range results {
		if r.Row == 42 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTreeSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := randomMatrix(80, 16, 7)
	tr := ann.NewTree(4)
	require.NoError(t, tr.Build(context.Background(), m, 3))
	require.NoError(t, tr.Save(dir))

	loaded := ann.NewTree(4)
	require.NoError(t, loaded.Load(dir))
	status := loaded.Status()
	assert.True(t, status.Exists)
	assert.Equal(t, 80, status.Size)
}

func TestBackendStatusEmptyBeforeBuild(t *testing.T) {
	assert.False(t, ann.NewFlat().Status().Exists)
	assert.False(t, ann.NewGraph(ann.DefaultGraphTuning()).Status().Exists)
	assert.False(t, ann.NewTree(4).Status().Exists)
}
