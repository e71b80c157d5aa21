package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/output"
	"github.com/aman-oss/photoidx/internal/ui"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func newWatchCmd() *cobra.Command {
	var root string
	var noColorFlag bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a running index/OCR/caption/metadata/face job's progress live",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noColor := noColorFlag || !output.IsTTY(cmd.OutOrStdout())
			r := projectRoot(args)
			if root != "" {
				r = root
			}
			cfg, err := config.Load(r)
			if err != nil {
				return err
			}
			embedder, err := resolveEmbedder(cfg)
			if err != nil {
				return err
			}
			store, err := photoindex.Open(r, embedder)
			if err != nil {
				return err
			}
			_, err = ui.Watch(cmd.Context(), store.Dir(), noColor)
			return err
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	cmd.Flags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	return cmd
}
