package main

import (
	"fmt"
	"os"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/dsl"
	"github.com/sbl8/attrgraph/graph"
	"github.com/spf13/cobra"
)

func newGraphRunCmd() *cobra.Command {
	var outputs []string
	cmd := &cobra.Command{
		Use:   "run <file.ag>",
		Short: "Compile a .ag DSL file and print its output attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			g := graph.New(nil, core.DefaultConfig())
			res, err := dsl.Compile(g, string(src))
			if err != nil {
				return fmt.Errorf("compile %s: %w", args[0], err)
			}

			names := outputs
			if len(names) == 0 {
				for name := range res.Attributes {
					names = append(names, name)
				}
			}

			for _, name := range names {
				a, ok := res.Attributes[name]
				if !ok {
					return fmt.Errorf("no such attribute %q", name)
				}
				typeID := res.Subgraph.Store.NodeAt(a).TypeID
				ptr, _, status := g.GetValue(a, 0, typeID)
				value := *(*int32)(ptr)
				fmt.Printf("%s = %d (%s)\n", name, value, status)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&outputs, "output", "o", nil, "attribute names to print (default: all declared attributes)")
	return cmd
}
