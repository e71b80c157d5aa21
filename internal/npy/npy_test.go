package npy_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/npy"
)

func TestWriteReadRoundTrip(t *testing.T) {
	m := npy.NewMatrix(3, 4)
	for i := range m.Data {
		m.Data[i] = float32(i) * 0.5
	}

	path := filepath.Join(t.TempDir(), "embeddings.npy")
	require.NoError(t, npy.Write(path, m))

	got, err := npy.Read(path)
	require.NoError(t, err)
	assert.Equal(t, m.Rows, got.Rows)
	assert.Equal(t, m.Cols, got.Cols)
	assert.Equal(t, m.Data, got.Data)
}

func TestWriteIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.npy")
	m := npy.NewMatrix(1, 2)
	m.Data[0], m.Data[1] = 1, 2
	require.NoError(t, npy.Write(path, m))

	entries, err := filepathGlob(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files after a successful write")
}

func TestRowReturnsMutableView(t *testing.T) {
	m := npy.NewMatrix(2, 2)
	row := m.Row(1)
	row[0] = 9
	assert.Equal(t, float32(9), m.Data[2])
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*"))
}
