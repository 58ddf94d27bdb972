package cmd

import (
	"fmt"
	"strconv"

	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/journal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var failuresLimit int

// failuresCmd lists failed ingestions recorded in the batch journal.
var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List failed batches recorded in the journal",
	Long: `The failures command reads the batch journal (--journal-dsn or
OCCINGEST_JOURNAL_DSN) and lists the most recent failed ingestions with the
batch id and service error id needed to follow up in Capture Center.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if settings.JournalDSN == "" {
			return apperr.New(apperr.Config, "journal is not configured (--journal-dsn or OCCINGEST_JOURNAL_DSN)")
		}
		j, err := journal.Open(ctx, settings.JournalDSN)
		if err != nil {
			return apperr.Wrap(apperr.Config, "open journal", err)
		}
		defer j.Close()

		entries, err := j.Failed(ctx, failuresLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			pterm.Success.Println("No failed batches recorded")
			return nil
		}
		data := pterm.TableData{{"Started", "Profile", "Batch", "Mode", "Stage", "Broken", "Error ID", "Kind"}}
		for _, e := range entries {
			data = append(data, []string{
				e.StartedAt.Local().Format("2006-01-02 15:04:05"),
				e.Profile,
				e.BatchID,
				e.Mode,
				e.Stage,
				strconv.FormatBool(e.Broken),
				e.ErrorID,
				e.ErrorKind,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		fmt.Printf("%d failed batch(es)\n", len(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(failuresCmd)
	failuresCmd.Flags().IntVar(&failuresLimit, "limit", 20, "Number of entries to show")
}
