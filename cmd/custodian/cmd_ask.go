package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/assistant"
	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/types"
)

func init() {
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <case> <question>...",
	Short: "Ask the cloud assistant about a sealed case",
	Long: `Ask the cloud assistant about a sealed case. The assistant reads a copy of
the sealed report and can never change it. Requires llm.api_key.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			ai, err := assistant.FromConfig(cfg)
			if err != nil {
				return err
			}
			answer, err := ai.Ask(cmd.Context(), rec, nil, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		})
	},
}
