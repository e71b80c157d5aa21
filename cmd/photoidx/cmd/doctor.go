package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Run pre-flight system checks: disk space, memory, file descriptors, model availability",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := projectRoot(args)
			checker := preflight.New(
				preflight.WithOffline(offline),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context(), root)
			checker.PrintResults(results)
			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("pre-flight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip checks only relevant to the ONNX embedder backend")
	return cmd
}
