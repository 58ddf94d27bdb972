// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"occingest/cli/internal/auth"
	"occingest/cli/internal/config"
	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var loginNoSave bool

// loginCmd verifies credentials against the server and remembers them.
// The password goes to the OS keychain, everything else to the config file.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Sign in to Capture Center and remember the password",
	Long: `The login command runs the OTDS sign-in against the configured server. The
password is prompted for unless given by flag or OCCINGEST_PASSWORD.

On success the password is stored in the OS keychain under the server and user
name, and server, user name and profile are written to the config file so later
commands need no flags.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		if settings.Server == "" {
			s, err := terminal.ReadLine("Capture Center server: ")
			if err != nil {
				return apperr.Wrap(apperr.InvalidInput, "read server", err)
			}
			settings.Server = s
		}
		if settings.Username == "" {
			u, err := terminal.ReadLine("User name: ")
			if err != nil {
				return apperr.Wrap(apperr.InvalidInput, "read user name", err)
			}
			settings.Username = u
		}
		if err := settings.Validate(); err != nil {
			return apperr.Wrap(apperr.Config, "incomplete configuration", err)
		}

		password := settings.Password
		if password == "" {
			pw, err := terminal.ReadSecret(fmt.Sprintf("Password for %s: ", settings.Username))
			if err != nil {
				return apperr.Wrap(apperr.InvalidInput, "read password", err)
			}
			password = pw
		}
		if strings.TrimSpace(password) == "" {
			return apperr.New(apperr.InvalidInput, "password is required")
		}

		cfg := authConfig(password)
		m, err := auth.NewManager(cfg, auth.WithLogger(logger))
		if err != nil {
			return err
		}
		defer m.Close()

		spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Signing in to " + settings.Server)
		s, err := m.Login(ctx)
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}
		account, err := s.API.CurrentUser(ctx)
		if err != nil {
			return err
		}

		if store := passwordStore(); store != nil {
			if err := auth.Remember(store, cfg); err != nil {
				pterm.Warning.Printf("Password not stored: %v\n", err)
			}
		} else if !settings.NoKeychain {
			pterm.Warning.Println("No keychain available; pass the password with OCCINGEST_PASSWORD next time")
		}

		if !loginNoSave {
			if err := saveSettings(); err != nil {
				pterm.Warning.Printf("Settings not saved: %v\n", err)
			}
		}

		name := account.DisplayName
		if name == "" {
			name = account.UserName
		}
		if name == "" {
			name = settings.Username
		}
		pterm.Success.Printf("Logged in to %s as %s\n", settings.Server, name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVar(&loginNoSave, "no-save", false, "Do not write server and user name to the config file")
}

// saveSettings writes the non-secret settings to the active config file.
func saveSettings() error {
	if configPath != "" {
		return config.SaveTo(configPath, settings)
	}
	return config.Save(settings)
}
