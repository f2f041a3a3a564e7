package main

import (
	"fmt"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/debugserver"
	"github.com/sbl8/attrgraph/graph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeDebugCmd() *cobra.Command {
	var addr string
	var token uint32
	cmd := &cobra.Command{
		Use:   "serve-debug",
		Short: "Start the token-framed debug server against an empty graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer logger.Sync()

			g := graph.New(nil, core.DefaultConfig())
			srv := &debugserver.Server{
				Token:   token,
				Handler: g.DebugHandler(),
				Logger:  logger,
			}

			logger.Info("debugserver: listening", zap.String("addr", addr))
			return srv.ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:4321", "address to listen on")
	cmd.Flags().Uint32Var(&token, "token", 0, "connection token required of every client")
	return cmd
}
