package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/progress"
	"github.com/aman-oss/photoidx/internal/scanner"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func newIndexCmd() *cobra.Command {
	var (
		includeVideo bool
		exclude      []string
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Scan a directory and build (or update) its photo index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := projectRoot(args)
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

			reporter, err := progress.NewReporter(store.Dir(), progress.KindIndexing, 0)
			if err != nil {
				return err
			}

			newCount, updatedCount, err := store.Upsert(ctx, root, scanner.ScanOptions{
				IncludeVideo:    includeVideo,
				ExcludePatterns: exclude,
			}, cfg.Embeddings.BatchSize, reporter)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s: %d new, %d updated\n", root, newCount, updatedCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeVideo, "video", false, "also index video files")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "filepath.Match glob(s) to skip, relative to the indexed root")

	return cmd
}
