package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/watcher"
)

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	root := t.TempDir()
	w, err := watcher.New(root, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	target := filepath.Join(root, "a.jpg")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte(i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case batch := <-w.Batches():
		assert.Contains(t, batch.Paths, target)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}

func TestWatcherPicksUpNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	w, err := watcher.New(root, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(root, "album")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(20 * time.Millisecond)
	target := filepath.Join(sub, "b.jpg")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	select {
	case batch := <-w.Batches():
		assert.NotEmpty(t, batch.Paths)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch from new subdirectory")
	}
}
