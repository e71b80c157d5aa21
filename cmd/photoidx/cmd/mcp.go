package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/mcp"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func newMCPCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio for this root's index",
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
			server, err := mcp.NewServer(store, cfg, r)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	return cmd
}
