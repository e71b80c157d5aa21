package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

// newExifCmd builds the EXIF auxiliary table (spec §4.5.3) with the
// store's deterministic default reader.
func newExifCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "exif [path]",
		Short: "Extract EXIF metadata for every indexed photo",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			n, err := store.BuildEXIF(nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted EXIF metadata for %d photos\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	return cmd
}

// newHashesCmd computes perceptual hashes (spec §4.5.4) with the store's
// default dHash implementation, and reports look-alike groups.
func newHashesCmd() *cobra.Command {
	var (
		root     string
		maxDist  int
		noReport bool
	)

	cmd := &cobra.Command{
		Use:   "hashes [path]",
		Short: "Compute perceptual hashes and report look-alike groups",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			n, err := store.BuildHashes(nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hashed %d photos\n", n)

			if noReport {
				return nil
			}
			groups, err := store.Lookalikes(maxDist)
			if err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "group (%d): %v\n", len(g), g)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	cmd.Flags().IntVar(&maxDist, "max-distance", 8, "maximum Hamming distance for a look-alike group")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "only compute hashes, skip printing look-alike groups")

	return cmd
}
