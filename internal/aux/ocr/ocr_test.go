package ocr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/aux/ocr"
	"github.com/aman-oss/photoidx/internal/embed"
)

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) IndexID() string { return "fake" }
func (f fakeEmbedder) Dimensions() int { return f.dim }
func (f fakeEmbedder) Available(context.Context) bool { return true }
func (f fakeEmbedder) Close() error { return nil }
func (f fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = float32(len(text))
	return v, nil
}
func (f fakeEmbedder) EmbedImages(context.Context, []string, int, embed.ProgressFunc) ([][]float32, []bool, error) {
	return nil, nil, nil
}

func TestBuildExtractsAndEmbedsMissingPaths(t *testing.T) {
	dir := t.TempDir()
	idx, err := ocr.Open(dir, 4)
	require.NoError(t, err)

	recognizer := func(_ context.Context, path string, _ []string) (string, error) {
		if path == "/empty.jpg" {
			return "", nil
		}
		return "hello " + path, nil
	}

	n, err := idx.Build(context.Background(), fakeEmbedder{dim: 4}, []string{"/a.jpg", "/empty.jpg"}, nil, recognizer, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	text, ok := idx.TextFor("/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "hello /a.jpg", text)

	row := idx.Matrix().Row(1)
	for _, v := range row {
		assert.Zero(t, v)
	}
}

func TestBuildSkipsAlreadyCachedPaths(t *testing.T) {
	dir := t.TempDir()
	idx, err := ocr.Open(dir, 4)
	require.NoError(t, err)

	calls := 0
	recognizer := func(context.Context, string, []string) (string, error) {
		calls++
		return "text", nil
	}

	_, err = idx.Build(context.Background(), fakeEmbedder{dim: 4}, []string{"/a.jpg"}, nil, recognizer, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	n, err := idx.Build(context.Background(), fakeEmbedder{dim: 4}, []string{"/a.jpg"}, nil, recognizer, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, calls, "second build should reuse the cached text")
}
