package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", 2*time.Second, "quiet period that closes a batch")
	watchCmd.Flags().Bool("once", false, "seal whatever is in the folder now and exit")
	watchSensors.register(watchCmd)
}

var watchSensors sensorFlags

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Seal a new case for every batch of files dropped into a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		once, _ := cmd.Flags().GetBool("once")
		watchSensors.resolve(cmd)

		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			folder := watch.New(args[0], debounce, func(ctx context.Context, b watch.Batch) error {
				for i := range b.Intakes {
					watchSensors.apply(&b.Intakes[i])
				}
				rec, err := sealCase(ctx, cfg, store, batchName(time.Now()), b.Intakes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Case %s sealed (%d artifacts) SEAL: %s\n", rec.ID, len(rec.Evidence), rec.Seal)
				return nil
			})

			if once {
				n, err := folder.Flush(cmd.Context())
				if err == nil && n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to ingest.")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for evidence...\n", args[0])
			return folder.Run(cmd.Context())
		})
	},
}
