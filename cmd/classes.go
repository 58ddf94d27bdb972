package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// classesCmd lists the document classes of the configured profile.
var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the document classes of a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, err := requireProfile()
		if err != nil {
			return err
		}
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

		classes, err := svc.DocumentClasses(ctx, profile)
		if err != nil {
			return err
		}
		if len(classes) == 0 {
			pterm.Info.Printf("Profile %s has no document classes\n", profile)
			return nil
		}
		items := make([]pterm.BulletListItem, 0, len(classes))
		for _, c := range classes {
			items = append(items, pterm.BulletListItem{Level: 0, Text: c})
		}
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("Document classes of " + profile))
		return pterm.DefaultBulletList.WithItems(items).Render()
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
}
