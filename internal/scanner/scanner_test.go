package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/scanner"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

func TestScanFindsImagesSortedByPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.jpg"))
	writeFile(t, filepath.Join(root, "a.png"))
	writeFile(t, filepath.Join(root, "notes.txt"))

	files, perPathErrs, err := scanner.ScanAll(context.Background(), scanner.ScanOptions{Root: root})
	require.NoError(t, err)
	assert.Empty(t, perPathErrs)
	require.Len(t, files, 2)
	assert.True(t, files[0].Path < files[1].Path)
	assert.Contains(t, files[0].Path, "a.png")
	assert.Contains(t, files[1].Path, "b.jpg")
}

func TestScanSkipsHiddenAndStoreDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".photo_index", "embeddings.npy"))
	writeFile(t, filepath.Join(root, ".hidden", "secret.jpg"))
	writeFile(t, filepath.Join(root, "visible.jpg"))

	files, _, err := scanner.ScanAll(context.Background(), scanner.ScanOptions{Root: root})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Path, "visible.jpg")
}

func TestScanHonorsExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "raw", "shot.jpg"))
	writeFile(t, filepath.Join(root, "keep.jpg"))

	files, _, err := scanner.ScanAll(context.Background(), scanner.ScanOptions{
		Root:            root,
		ExcludePatterns: []string{"raw/*"},
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Path, "keep.jpg")
}

func TestScanIncludesVideoOnlyWhenRequested(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"))

	withoutVideo, _, err := scanner.ScanAll(context.Background(), scanner.ScanOptions{Root: root})
	require.NoError(t, err)
	assert.Empty(t, withoutVideo)

	withVideo, _, err := scanner.ScanAll(context.Background(), scanner.ScanOptions{Root: root, IncludeVideo: true})
	require.NoError(t, err)
	require.Len(t, withVideo, 1)
}

func TestScanReportsUnreadableDirectoryWithoutAborting(t *testing.T) {
	root := t.TempDir()
	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.MkdirAll(blocked, 0o000))
	defer func() { _ = os.Chmod(blocked, 0o755) }()
	writeFile(t, filepath.Join(root, "ok.jpg"))

	files, perPathErrs, err := scanner.ScanAll(context.Background(), scanner.ScanOptions{Root: root})
	require.NoError(t, err)
	assert.Len(t, files, 1)
	if os.Getuid() != 0 {
		assert.NotEmpty(t, perPathErrs)
	}
}
