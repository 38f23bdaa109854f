package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Custodian Setup Wizard")
		fmt.Fprintln(out, "Press Enter to accept the default value shown in brackets.")
		fmt.Fprintln(out)

		cfg.Actor = prompt(scanner, out, "Examiner name recorded in custody entries", cfg.Actor)
		cfg.Timezone = prompt(scanner, out, "Report timezone (IANA name)", cfg.Timezone)
		if _, err := cfg.Location(); err != nil {
			return err
		}
		cfg.Store = prompt(scanner, out, "Case store (json|sqlite)", cfg.Store)
		if cfg.Store != config.StoreJSON && cfg.Store != config.StoreSQLite {
			return fmt.Errorf("unknown store %q", cfg.Store)
		}

		// Cloud assistant (optional)
		cfg.LLM.BaseURL = prompt(scanner, out, "Assistant API base URL", cfg.LLM.BaseURL)
		cfg.LLM.APIKey = prompt(scanner, out, "Assistant API key (optional)", cfg.LLM.APIKey)
		cfg.LLM.Model = prompt(scanner, out, "Assistant model name", cfg.LLM.Model)

		// Telegram (optional)
		cfg.Telegram.Token = prompt(scanner, out, "Telegram bot token (optional)", cfg.Telegram.Token)
		chat := prompt(scanner, out, "Telegram chat for notices (optional)", strconv.FormatInt(cfg.Telegram.ChatID, 10))
		if n, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Telegram.ChatID = n
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, out io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
