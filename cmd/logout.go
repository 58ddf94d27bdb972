// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"occingest/cli/internal/auth"
	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/keychain"

	"github.com/spf13/cobra"
)

var logoutAll bool

// logoutCmd removes stored passwords. Capture Center sessions are not shared
// between runs, so there is nothing to end on the server.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored password",
	Long: `The logout command removes the password stored for the configured server and
user name from the OS keychain. With --all every occingest password is removed.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return apperr.Wrap(apperr.Config, "open keychain", err)
		}
		if logoutAll {
			if err := km.ClearAll(); err != nil {
				return err
			}
			fmt.Println("✅ All stored passwords have been removed")
			return nil
		}
		if settings.Server == "" || settings.Username == "" {
			return apperr.New(apperr.Config, "server and username are needed to find the stored password (or use --all)")
		}
		if err := auth.Forget(km, settings.Server, settings.Username); err != nil {
			return err
		}
		fmt.Printf("✅ Password for %s on %s has been removed\n", settings.Username, settings.Server)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Remove passwords for every server and user")
}
