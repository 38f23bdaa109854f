package main

import (
	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/mcp"
	"github.com/user/custodian/internal/types"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only case tools over MCP (stdio)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			return mcp.NewServer(store, version).Run(cmd.Context())
		})
	},
}
