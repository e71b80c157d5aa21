// Package cmd provides the CLI commands for photoidx.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/embed"
	"github.com/aman-oss/photoidx/internal/logging"
	"github.com/aman-oss/photoidx/pkg/version"
)

var debugMode bool

// NewRootCmd creates the root command for the photoidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "photoidx",
		Short:   "Local-first semantic photo search",
		Version: version.Version,
		Long: `photoidx builds and queries a local semantic index over your photos:
CLIP-family image/text embeddings, approximate nearest-neighbor search,
and auxiliary OCR/caption/EXIF/face indexes, with no cloud dependency.`,
	}
	cmd.SetVersionTemplate("photoidx version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.photoidx/logs/")
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if debugMode {
			logger, _, err := logging.Setup(logging.DebugConfig())
			if err != nil {
				return fmt.Errorf("setup debug logging: %w", err)
			}
			slog.SetDefault(logger)
		}
		return nil
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAnnCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newExifCmd())
	cmd.AddCommand(newHashesCmd())
	cmd.AddCommand(newFavoriteCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveEmbedder builds the Embedder named by cfg.Embeddings.Backend.
// "static" needs no external assets; "onnx" loads visual/textual models
// and a shared tokenizer from cfg.Embeddings.ModelDir.
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

func projectRoot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
