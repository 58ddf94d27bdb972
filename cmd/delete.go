package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// deleteCmd removes batches, typically ones reported by a failed ingest.
var deleteCmd = &cobra.Command{
	Use:   "delete BATCH_ID...",
	Short: "Delete batches from the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := connect(ctx)
		if err != nil {
			return err
		}
		defer m.Close()

		svc, cleanup, err := newIngestService(ctx, m)
		if err != nil {
			return err
		}
		defer cleanup()

		var errs []error
		for _, id := range args {
			if err := svc.DeleteBatch(ctx, id); err != nil {
				pterm.Error.Printf("Batch %s: %v\n", id, err)
				errs = append(errs, err)
				continue
			}
			pterm.Success.Printf("Batch %s deleted\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
