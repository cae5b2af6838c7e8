package main

import (
	"github.com/spf13/cobra"

	"github.com/styledmap/smp/pkg/mcpserver"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve download_smp and validate_smp as MCP tools over stdio",
	RunE:  runServeMCP,
}

func init() {
	rootCmd.AddCommand(serveMCPCmd)
}

func runServeMCP(cmd *cobra.Command, args []string) error {
	srv := mcpserver.New(logger)
	return srv.Run(cmd.Context())
}
