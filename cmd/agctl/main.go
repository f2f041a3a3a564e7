// Command agctl is the attribute-graph CLI — spec.md §6's external surface
// exercised from a terminal instead of the C-ABI. It replaces the teacher's
// flag-package cmd/sublc, cmd/sublrun and cmd/sublperf with a single
// cobra.Command tree, grounded in the erigon/golang-debug corpus's use of
// github.com/spf13/cobra for multi-subcommand tooling rather than the
// teacher's bespoke per-binary flag parsing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agctl",
		Short: "Inspect and drive an attribute graph",
	}
	root.AddCommand(newGraphCmd())
	root.AddCommand(newServeDebugCmd())
	return root
}

func newGraphCmd() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Compile and evaluate attribute graphs",
	}
	graphCmd.AddCommand(newGraphRunCmd())
	graphCmd.AddCommand(newGraphBenchCmd())
	return graphCmd
}
