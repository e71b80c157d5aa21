package exif_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/aux/exif"
)

func TestDefaultExtractorFallsBackToFileMTimeAndDecodedSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.png")

	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, color.Gray{Y: 200})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	rec, err := exif.DefaultExtractor(path)
	require.NoError(t, err)

	// A plain PNG carries no EXIF tags, so dimensions and mtime fall back
	// to the decoder and the filesystem rather than being zero.
	assert.Equal(t, 12, rec.Width)
	assert.Equal(t, 8, rec.Height)
	assert.NotZero(t, rec.MTime)
}

func TestDefaultExtractorNonexistentPathErrors(t *testing.T) {
	_, err := exif.DefaultExtractor(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
