package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/filter"
)

func TestDocIndexMatchesTerm(t *testing.T) {
	idx, err := filter.NewDocIndex(map[string]string{
		"/a.jpg": "a red car on the beach",
		"/b.jpg": "a blue boat at the dock",
	})
	require.NoError(t, err)
	defer idx.Close()

	matches, err := idx.Matches("beach")
	require.NoError(t, err)
	assert.True(t, matches["/a.jpg"])
	assert.False(t, matches["/b.jpg"])
}
