package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

// newFavoriteCmd marks or unmarks an indexed photo as a favorite (spec
// §4.7's Collections row: the Favorites set favorites_only tests against),
// or lists the current set with --list.
func newFavoriteCmd() *cobra.Command {
	var (
		root   string
		remove bool
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "favorite [path]",
		Short: "Mark, unmark, or list favorited photos",
		Args:  cobra.MaximumNArgs(1),
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

			if list {
				paths, err := store.Favorites()
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("provide a photo path, or --list")
			}
			return store.SetFavorite(args[0], !remove)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	cmd.Flags().BoolVar(&remove, "remove", false, "unmark the photo instead of marking it")
	cmd.Flags().BoolVar(&list, "list", false, "list every favorited photo")

	return cmd
}
