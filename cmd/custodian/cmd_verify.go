package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/transport"
	"github.com/user/custodian/internal/types"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("qr", "", "read the seal from a QR code image instead")
}

var verifyCmd = &cobra.Command{
	Use:   "verify [seal]",
	Short: "Check a seal against every stored case",
	Long: `Check a seal against every stored case. Only an exact match verifies;
anything else means the evidence was altered or the case is unknown here.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qrPath, _ := cmd.Flags().GetString("qr")
		candidate, err := candidateSeal(args, qrPath)
		if err != nil {
			return err
		}
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			cases, err := store.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			v := seal.Verify(candidate, cases)
			fmt.Fprintln(cmd.OutOrStdout(), v.Message)
			if !v.Matched {
				return seal.ErrTampered
			}
			return nil
		})
	},
}

func candidateSeal(args []string, qrPath string) (string, error) {
	switch {
	case qrPath != "" && len(args) > 0:
		return "", errors.New("give either a seal or --qr, not both")
	case qrPath != "":
		f, err := os.Open(qrPath)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return transport.Decode(f)
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("a seal or --qr image is required")
	}
}
