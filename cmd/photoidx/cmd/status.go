package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/progress"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func newStatusCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current indexing status for a root",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := projectRoot(nil)
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

			status, err := progress.ReadStatus(store.Dir())
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "no indexing run has been recorded for this root")
				return nil
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	return cmd
}
