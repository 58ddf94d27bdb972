// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"occingest/cli/internal/ingest"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	ingestMode      string
	ingestClass     string
	ingestBatchName string
	ingestSingleDoc bool
)

// ingestCmd creates one batch from the given files and submits it.
var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Create a batch from files and submit it",
	Long: `The ingest command creates a batch in the configured profile, attaches the
files and submits the batch for processing.

In document mode (the default) every file becomes its own document, tagged with
--class when given; --single-document puts all files into one document. In
loose mode the files are attached to the batch directly.

When attaching fails the batch is broken on the server so it does not linger.
When closing fails the batch id and the service error id are reported so the
batch can be found in Capture Center.`,
	Args: cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, err := requireProfile()
		if err != nil {
			return err
		}
		mode, err := ingest.ParseMode(ingestMode)
		if err != nil {
			return err
		}
		files, err := absPaths(args)
		if err != nil {
			return err
		}

		m, err := connect(ctx)
		if err != nil {
			return err
		}
		defer m.Close()

		var opts []ingest.Option
		if ingestSingleDoc {
			opts = append(opts, ingest.WithGrouping(ingest.SingleDocument))
		}
		svc, cleanup, err := newIngestService(ctx, m, opts...)
		if err != nil {
			return err
		}
		defer cleanup()

		class := ingestClass
		if class == "" {
			class = settings.DocumentClass
		}
		spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Ingesting ", len(files), " file(s) into ", profile)
		id, err := svc.CreateAndIngestBatch(ctx, ingest.Request{
			Profile:       profile,
			Files:         files,
			Mode:          mode,
			DocumentClass: class,
			BatchName:     ingestBatchName,
		})
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}
		pterm.Success.Printf("Batch %s submitted (%s mode, %d file(s))\n", id, mode, len(files))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "document", "Attach files as 'document' or 'loose'")
	ingestCmd.Flags().StringVar(&ingestClass, "class", "", "Document class for created documents")
	ingestCmd.Flags().StringVar(&ingestBatchName, "batch-name", "", "Batch name (default \"noname\")")
	ingestCmd.Flags().BoolVar(&ingestSingleDoc, "single-document", false, "Put all files into one document")
}
