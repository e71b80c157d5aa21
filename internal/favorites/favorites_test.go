package favorites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/favorites"
)

func TestAddRemoveAndPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := favorites.Open(dir)
	require.NoError(t, err)
	assert.False(t, s.Is("/a.jpg"))

	require.NoError(t, s.Add("/a.jpg"))
	require.NoError(t, s.Add("/b.jpg"))
	assert.True(t, s.Is("/a.jpg"))
	assert.Equal(t, []string{"/a.jpg", "/b.jpg"}, s.Paths())

	reopened, err := favorites.Open(dir)
	require.NoError(t, err)
	assert.True(t, reopened.Is("/a.jpg"))
	assert.True(t, reopened.Is("/b.jpg"))

	require.NoError(t, reopened.Remove("/a.jpg"))
	assert.False(t, reopened.Is("/a.jpg"))

	third, err := favorites.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"/b.jpg"}, third.Paths())
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, err := favorites.Open(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, s.Paths())
	assert.Empty(t, s.AsMap())
}

func TestPruneDropsAbsentPaths(t *testing.T) {
	dir := t.TempDir()
	s, err := favorites.Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Add("/a.jpg"))
	require.NoError(t, s.Add("/b.jpg"))

	require.NoError(t, s.Prune(map[string]bool{"/a.jpg": true}))
	assert.Equal(t, []string{"/a.jpg"}, s.Paths())

	reopened, err := favorites.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.jpg"}, reopened.Paths())
}
