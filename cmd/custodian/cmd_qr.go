package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/transport"
	"github.com/user/custodian/internal/types"
)

func init() {
	rootCmd.AddCommand(qrCmd)
	qrCmd.AddCommand(qrEncodeCmd, qrDecodeCmd)
	qrEncodeCmd.Flags().StringP("output", "o", "", "PNG output path (default <case-id>.png)")
	qrEncodeCmd.Flags().Int("size", transport.DefaultSize, "image edge length in pixels")
}

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Move case seals between devices as QR codes",
}

var qrEncodeCmd = &cobra.Command{
	Use:   "encode <case>",
	Short: "Write a case's seal as a QR code PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		size, _ := cmd.Flags().GetInt("size")
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			png, err := transport.EncodePNG(rec.Seal, size)
			if err != nil {
				return err
			}
			if output == "" {
				output = string(rec.ID) + ".png"
			}
			if err := os.WriteFile(output, png, 0644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seal for case %s written to %s\n", rec.ID, output)
			return nil
		})
	},
}

var qrDecodeCmd = &cobra.Command{
	Use:   "decode <image>",
	Short: "Print the seal carried by a QR code image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		s, err := transport.Decode(f)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}
