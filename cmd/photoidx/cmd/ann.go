package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/ann"
	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func newAnnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ann",
		Short: "Manage approximate-nearest-neighbor sidecars",
	}
	cmd.AddCommand(newAnnBuildCmd())
	return cmd
}

func newAnnBuildCmd() *cobra.Command {
	var (
		root    string
		backend string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "(Re)build the named ANN backend (flat, graph, or tree) over the current index",
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

			b, err := newBackend(backend, cfg)
			if err != nil {
				return err
			}

			if err := store.BuildANN(cmd.Context(), b); err != nil {
				return err
			}

			status := store.ANNStatus()
			fmt.Fprintf(cmd.OutOrStdout(), "built %s ann backend: %d vectors, dim %d\n", b.Name(), status.Size, status.Dim)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	cmd.Flags().StringVar(&backend, "backend", "flat", "ann backend: flat, graph, or tree")
	return cmd
}

func newBackend(name string, cfg *config.Config) (ann.Backend, error) {
	switch name {
	case "flat":
		return ann.NewFlat(), nil
	case "graph":
		return ann.NewGraph(ann.GraphTuning{
			M:              cfg.ANN.GraphM,
			EfConstruction: cfg.ANN.GraphEfConstruction,
			EfSearch:       cfg.ANN.GraphEfSearch,
		}), nil
	case "tree":
		return ann.NewTree(cfg.ANN.TreeCount), nil
	default:
		return nil, fmt.Errorf("unknown ann backend %q", name)
	}
}
