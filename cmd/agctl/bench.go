package main

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/dsl"
	"github.com/sbl8/attrgraph/graph"
	"github.com/spf13/cobra"
)

func newGraphBenchCmd() *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run spec.md's S2 diamond scenario repeatedly and report timing",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := graph.New(nil, core.DefaultConfig())
			src := `
const a 1
map b inc <- a
map c inc <- a
map2 d add <- b c
`
			res, err := dsl.Compile(g, src)
			if err != nil {
				return fmt.Errorf("compile diamond: %w", err)
			}
			a, d := res.Attributes["a"], res.Attributes["d"]
			dType := res.Subgraph.Store.NodeAt(d).TypeID

			start := time.Now()
			for i := 0; i < iterations; i++ {
				v := int32(i)
				res.Subgraph.Store.SetValue(a, g.Builder(), unsafe.Pointer(&v))
				ptr, _, status := g.GetValue(d, 0, dType)
				if status != core.StatusChanged && status != core.StatusNoChange {
					return fmt.Errorf("unexpected status %v at iteration %d", status, i)
				}
				_ = ptr
			}
			elapsed := time.Since(start)

			fmt.Printf("%d iterations in %s (%.0f ns/op)\n", iterations, elapsed, float64(elapsed.Nanoseconds())/float64(iterations))
			return nil
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 100000, "number of a-mutations to drive through the diamond")
	return cmd
}
