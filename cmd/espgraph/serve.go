package main

import (
	"github.com/dusk-indust/espgraph/internal/mcptools"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the analysis tools over MCP streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := mcptools.NewModService(a.cache, a.builder, a.engine,
				mcptools.WithLogger(a.log.Named("mcp")),
				mcptools.WithRules(a.cfg.Rules),
				mcptools.WithExtensions(a.cfg.Extensions),
				mcptools.WithPersistDir(a.cfg.PersistDir),
			)
			a.log.Info("serving MCP", zap.String("addr", addr), zap.String("version", mcptools.Version()))
			return mcptools.RunMCPServer(cmd.Context(), svc, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8765", "listen address")
	return cmd
}
