package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd constructs the root CLI command; exposed for testing.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatchd",
		Short: "Elastic worker-pool scheduler daemon",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newStatsCmd())
	return root
}
