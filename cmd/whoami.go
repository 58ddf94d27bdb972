package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// whoamiCmd signs in with the stored credentials and shows the account the
// server reports for the session.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account the server sees",
	Long: `The whoami command logs in with the configured user and stored password and
prints the account returned by account/currentUser. It is a quick way to check
server address, credentials and keychain setup before ingesting.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := connect(ctx)
		if err != nil {
			return err
		}
		defer m.Close()

		s, err := m.AssertValid(ctx)
		if err != nil {
			return err
		}
		account, err := s.API.CurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("👤 Current user: %s\n", account.UserName)
		if account.DisplayName != "" && account.DisplayName != account.UserName {
			fmt.Printf("   Display name: %s\n", account.DisplayName)
		}
		fmt.Printf("   Server:       %s\n", s.Server)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
