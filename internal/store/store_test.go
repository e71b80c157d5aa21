package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/embed"
	"github.com/aman-oss/photoidx/internal/npy"
	"github.com/aman-oss/photoidx/internal/store"
)

// fakeEmbedder returns a deterministic vector per path so tests can assert
// which rows were (re-)computed without a real model.
type fakeEmbedder struct {
	dim   int
	calls [][]string
	fail  map[string]bool
}

func (f *fakeEmbedder) IndexID() string { return "fake-v1" }

func (f *fakeEmbedder) Dimensions() int { return f.dim }

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	row := make([]float32, f.dim)
	row[0] = float32(len(text))
	return row, nil
}

func (f *fakeEmbedder) Available(_ context.Context) bool { return true }

func (f *fakeEmbedder) Close() error { return nil }

func (f *fakeEmbedder) EmbedImages(_ context.Context, paths []string, _ int, _ embed.ProgressFunc) ([][]float32, []bool, error) {
	f.calls = append(f.calls, append([]string{}, paths...))
	rows := make([][]float32, len(paths))
	valid := make([]bool, len(paths))
	for i, p := range paths {
		if f.fail[p] {
			rows[i] = make([]float32, f.dim)
			continue
		}
		row := make([]float32, f.dim)
		row[0] = float32(len(p))
		row[1] = 1
		rows[i] = row
		valid[i] = true
	}
	return rows, valid, nil
}

func TestUpsertAddsNewRows(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, 4)
	require.NoError(t, err)

	fe := &fakeEmbedder{dim: 4}
	n, u, err := s.Upsert(context.Background(), fe, []store.Photo{
		{Path: "/a.jpg", MTime: 1},
		{Path: "/b.jpg", MTime: 2},
	}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, u)

	snap := s.Snapshot()
	assert.Equal(t, []string{"/a.jpg", "/b.jpg"}, snap.Paths)
	assert.Equal(t, 2, snap.Embeddings.Rows)
}

func TestUpsertReembedsModifiedAndPrunesDeleted(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, 4)
	require.NoError(t, err)

	fe := &fakeEmbedder{dim: 4}
	_, _, err = s.Upsert(context.Background(), fe, []store.Photo{
		{Path: "/a.jpg", MTime: 1},
		{Path: "/b.jpg", MTime: 1},
	}, 8, nil)
	require.NoError(t, err)

	// /a.jpg's mtime advances, /b.jpg is gone, /c.jpg is new.
	n, u, err := s.Upsert(context.Background(), fe, []store.Photo{
		{Path: "/a.jpg", MTime: 5},
		{Path: "/c.jpg", MTime: 1},
	}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, u)

	snap := s.Snapshot()
	assert.ElementsMatch(t, []string{"/a.jpg", "/c.jpg"}, snap.Paths)
	assert.Equal(t, 2, snap.Embeddings.Rows)
}

func TestUpsertIsIdempotentWhenMtimeUnchanged(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, 4)
	require.NoError(t, err)

	fe := &fakeEmbedder{dim: 4}
	_, _, err = s.Upsert(context.Background(), fe, []store.Photo{{Path: "/a.jpg", MTime: 1}}, 8, nil)
	require.NoError(t, err)

	n, u, err := s.Upsert(context.Background(), fe, []store.Photo{{Path: "/a.jpg", MTime: 1}}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, u)
	assert.Len(t, fe.calls, 1, "second upsert should not re-embed an unchanged photo")
}

func TestUpsertFailedEmbeddingOnNewPathLeavesRowAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, 4)
	require.NoError(t, err)

	fe := &fakeEmbedder{dim: 4, fail: map[string]bool{"/bad.jpg": true}}
	n, u, err := s.Upsert(context.Background(), fe, []store.Photo{{Path: "/bad.jpg", MTime: 1}}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, u)

	snap := s.Snapshot()
	assert.Empty(t, snap.Paths, "a photo whose embedding failed must never appear as a zero row")
}

func TestUpsertFailedEmbeddingOnModifiedPathPreservesPriorRow(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, 4)
	require.NoError(t, err)

	fe := &fakeEmbedder{dim: 4}
	_, _, err = s.Upsert(context.Background(), fe, []store.Photo{{Path: "/a.jpg", MTime: 1}}, 8, nil)
	require.NoError(t, err)

	before := s.Snapshot()
	priorRow := append([]float32{}, before.Embeddings.Row(0)...)

	fe.fail = map[string]bool{"/a.jpg": true}
	n, u, err := s.Upsert(context.Background(), fe, []store.Photo{{Path: "/a.jpg", MTime: 5}}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, u, "a failed re-embed must not count as an update")

	after := s.Snapshot()
	assert.Equal(t, []string{"/a.jpg"}, after.Paths)
	assert.Equal(t, priorRow, after.Embeddings.Row(0), "row must keep its previous value, never a zero row")
	assert.Equal(t, float64(1), after.MTimes[0], "mtime should not advance so the next upsert retries")
}

func TestOpenRecoversFromShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, 4)
	require.NoError(t, err)
	_, _, err = s.Upsert(context.Background(), &fakeEmbedder{dim: 4}, []store.Photo{{Path: "/a.jpg", MTime: 1}}, 8, nil)
	require.NoError(t, err)

	// Overwrite embeddings.npy with a two-row matrix while paths.json lists one path.
	require.NoError(t, npy.Write(filepath.Join(dir, "embeddings.npy"), npy.NewMatrix(2, 4)))

	reopened, err := store.Open(dir, 4)
	require.NoError(t, err)
	snap := reopened.Snapshot()
	assert.Empty(t, snap.Paths)
}

func TestNukeRemovesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	s, err := store.Open(dir, 4)
	require.NoError(t, err)
	_, _, err = s.Upsert(context.Background(), &fakeEmbedder{dim: 4}, []store.Photo{{Path: "/a.jpg", MTime: 1}}, 8, nil)
	require.NoError(t, err)

	require.NoError(t, s.Nuke())
	_, statErr := store.Open(dir, 4)
	require.NoError(t, statErr) // Open recreates the directory; that's fine, it should just be empty.
}
