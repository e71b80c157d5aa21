package mcp_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/embed"
	"github.com/aman-oss/photoidx/internal/mcp"
	"github.com/aman-oss/photoidx/internal/scanner"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func TestNewServerRegistersWithoutError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("x"), 0o644))

	store, err := photoindex.Open(root, embed.NewStaticEmbedder())
	require.NoError(t, err)

	_, _, err = store.Upsert(context.Background(), root, scanner.ScanOptions{}, 8, nil)
	require.NoError(t, err)

	server, err := mcp.NewServer(store, config.New(), root)
	require.NoError(t, err)
	assert.NotNil(t, server.MCPServer())
}
