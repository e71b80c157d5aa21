package photoindex_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/embed"
	"github.com/aman-oss/photoidx/internal/scanner"
	"github.com/aman-oss/photoidx/internal/search"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func writeFakeImage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("not a real image but has a name"), 0o644))
}

func TestOpenUpsertSearchRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFakeImage(t, filepath.Join(root, "a.jpg"))
	writeFakeImage(t, filepath.Join(root, "b.jpg"))

	s, err := photoindex.Open(root, embed.NewStaticEmbedder())
	require.NoError(t, err)

	newCount, updatedCount, err := s.Upsert(context.Background(), root, scanner.ScanOptions{}, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, newCount)
	assert.Equal(t, 0, updatedCount)

	results, err := s.Search(context.Background(), "a", 10, search.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestSearchLikeRanksSelfFirst(t *testing.T) {
	root := t.TempDir()
	writeFakeImage(t, filepath.Join(root, "a.jpg"))
	writeFakeImage(t, filepath.Join(root, "b.jpg"))

	s, err := photoindex.Open(root, embed.NewStaticEmbedder())
	require.NoError(t, err)
	_, _, err = s.Upsert(context.Background(), root, scanner.ScanOptions{}, 8, nil)
	require.NoError(t, err)

	results, err := s.SearchLike(context.Background(), filepath.Join(root, "a.jpg"), 10, search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, filepath.Join(root, "a.jpg"), results[0].Path)
}

func TestNukeClearsStore(t *testing.T) {
	root := t.TempDir()
	writeFakeImage(t, filepath.Join(root, "a.jpg"))

	s, err := photoindex.Open(root, embed.NewStaticEmbedder())
	require.NoError(t, err)
	_, _, err = s.Upsert(context.Background(), root, scanner.ScanOptions{}, 8, nil)
	require.NoError(t, err)

	require.NoError(t, s.Nuke())

	s2, err := photoindex.Open(root, embed.NewStaticEmbedder())
	require.NoError(t, err)
	results, err := s2.Search(context.Background(), "", 10, search.Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
