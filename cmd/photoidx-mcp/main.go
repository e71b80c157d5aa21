// Command photoidx-mcp exposes a single photo index as an MCP server over
// stdio, for use by AI coding/assistant clients (spec §6.2, exposed as
// tools rather than library calls).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/embed"
	"github.com/aman-oss/photoidx/internal/logging"
	"github.com/aman-oss/photoidx/internal/mcp"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func main() {
	logCfg := logging.DefaultConfig()
	logCfg.FilePath = logging.DefaultMCPLogPath()
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "photoidx-mcp: failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("photoidx-mcp exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	root, err := resolveAbs(root)
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	embedder, err := resolveEmbedder(cfg)
	if err != nil {
		return err
	}

	store, err := photoindex.Open(root, embedder)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(store, cfg, root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}

func resolveAbs(path string) (string, error) {
	return filepath.Abs(path)
}

func resolveEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embeddings.Backend {
	case "", "static":
		return embed.NewStaticEmbedder(), nil
	case "onnx":
		return embed.NewONNX(embed.ONNXConfig{
			ModelDir:   cfg.Embeddings.ModelDir,
			IndexID:    "onnx-" + config.SanitizeKey(cfg.Embeddings.ModelDir),
			Dimensions: cfg.Embeddings.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embeddings backend %q", cfg.Embeddings.Backend)
	}
}
