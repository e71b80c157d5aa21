package exif_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/aux/exif"
)

func ptr(f float64) *float64 { return &f }

func TestBuildAndLookup(t *testing.T) {
	dir := t.TempDir()
	table, err := exif.Open(dir)
	require.NoError(t, err)
	defer table.Close()

	extract := func(path string) (exif.Record, error) {
		return exif.Record{
			Camera: "Canon EOS", ISO: ptr(400), FNumber: ptr(2.8), Flash: "no", WB: "auto",
			Metering: "pattern", Width: 4000, Height: 3000, MTime: 100,
		}, nil
	}

	n, err := table.Build([]string{"/a.jpg"}, extract)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, ok := table.Lookup("/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "Canon EOS", rec.Camera)
	assert.Equal(t, 400.0, *rec.ISO)
}

func TestBuildSkipsExtractionFailures(t *testing.T) {
	dir := t.TempDir()
	table, err := exif.Open(dir)
	require.NoError(t, err)
	defer table.Close()

	extract := func(path string) (exif.Record, error) {
		if path == "/bad.jpg" {
			return exif.Record{}, assertErr{}
		}
		return exif.Record{Camera: "X"}, nil
	}

	n, err := table.Build([]string{"/good.jpg", "/bad.jpg"}, extract)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := table.Lookup("/bad.jpg")
	assert.False(t, ok)
}

func TestRemovePrunesStaleRows(t *testing.T) {
	dir := t.TempDir()
	table, err := exif.Open(dir)
	require.NoError(t, err)
	defer table.Close()

	extract := func(path string) (exif.Record, error) { return exif.Record{Camera: "X"}, nil }
	_, err = table.Build([]string{"/a.jpg", "/b.jpg"}, extract)
	require.NoError(t, err)

	require.NoError(t, table.Remove(map[string]bool{"/a.jpg": true}))

	_, ok := table.Lookup("/b.jpg")
	assert.False(t, ok)
	_, ok = table.Lookup("/a.jpg")
	assert.True(t, ok)
}

type assertErr struct{}

func (assertErr) Error() string { return "extraction failed" }
