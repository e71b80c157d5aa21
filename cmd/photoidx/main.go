// Package main provides the entry point for the photoidx CLI.
package main

import (
	"os"

	"github.com/aman-oss/photoidx/cmd/photoidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
