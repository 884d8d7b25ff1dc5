package main

import (
	"github.com/aretw0/quorum"
	"github.com/aretw0/quorum/internal/cli"
	"github.com/aretw0/quorum/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server over stdio, so agents can validate
flows, start runs and read traces as tools.

Logs go to stderr; stdout carries only JSON-RPC.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, closeFn, err := cli.BuildEngine(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		srv := mcp.NewServer(engine, quorum.Version, mcp.WithLogger(logger))
		logger.Info("starting quorum MCP server (stdio)", "store", cfg.Store)
		if err := srv.ServeStdio(); err != nil {
			logger.Error("MCP server execution failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
