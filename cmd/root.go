// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for occingest.
// It implements subcommands for logging in to OpenText Capture Center, creating
// and submitting batches, and housekeeping around them using the Cobra CLI
// framework. Settings come from the config file, OCCINGEST_* environment
// variables and flags, layered by viper.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"occingest/cli/internal/config"
	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/httperrors"
	"occingest/cli/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	showVersion bool
	configPath  string

	// settings is filled by PersistentPreRunE for every subcommand.
	settings config.Config
	logger   = slog.New(slog.NewTextHandler(io.Discard, nil))
	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "occingest",
	Short: "Batch ingestion client for OpenText Capture Center",
	Long: `occingest logs in to OpenText Capture Center through OTDS and submits
files as batches, either as loose files or one document per file.

Settings are read from the config file, then OCCINGEST_* environment variables,
then flags. Passwords are kept in the OS keychain after 'occingest login'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("occingest %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// Typed errors are rendered with their batch and service error identifiers.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var e *apperr.E
		if errors.As(err, &e) {
			if apperr.Is(err, apperr.Transport) {
				_ = httperrors.FormatNetworkError(err, "talking to Capture Center", httperrors.ExtractHostFromURL(settings.Server))
			}
			logging.PresentFormattedError(err)
		} else {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		_ = closeLog()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")

	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "Config file (default is $XDG_CONFIG_HOME/occingest/config.json)")
	f.String("server", "", "Capture Center server, e.g. occ.example.com or https://occ:8080")
	f.String("username", "", "OTDS user name")
	f.String("password", "", "OTDS password (prefer 'occingest login' or OCCINGEST_PASSWORD)")
	f.String("profile", "", "Capture Center profile new batches are created in")
	f.Int("session-timeout", 0, "Server session timeout in minutes")
	f.Int("ms-per-mb", 0, "Upload time allowance per megabyte, in milliseconds")
	f.Int("request-timeout", 0, "Timeout for calls without uploads, in seconds")
	f.Bool("inquiry", false, "Ask the server whether a batch was imported when closing it fails")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("log-file", "", "Also write JSON logs to this file")
	f.String("journal-dsn", "", "Record every batch outcome in this PostgreSQL database")
	f.Bool("no-keychain", false, "Do not read or write the OS keychain")
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"server":          config.KeyServer,
	"username":        config.KeyUsername,
	"password":        config.KeyPassword,
	"profile":         config.KeyProfile,
	"session-timeout": config.KeySessionTimeout,
	"ms-per-mb":       config.KeyMsPerMB,
	"request-timeout": config.KeyRequestTimeout,
	"inquiry":         config.KeyInquiry,
	"log-level":       config.KeyLogLevel,
	"log-file":        config.KeyLogFile,
	"journal-dsn":     config.KeyJournalDSN,
	"no-keychain":     config.KeyNoKeychain,
}

// loadSettings layers config file, environment and the flags the user set,
// then sets up logging.
func loadSettings(cmd *cobra.Command) error {
	v, err := config.NewViper(configPath)
	if err != nil {
		return apperr.Wrap(apperr.Config, "load configuration", err)
	}
	var bindErr error
	cmd.Flags().VisitAll(func(fl *pflag.Flag) {
		key, ok := flagKeys[fl.Name]
		if !ok || !fl.Changed {
			return
		}
		if err := v.BindPFlag(key, fl); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return apperr.Wrap(apperr.Config, "bind flags", bindErr)
	}
	if settings, err = config.FromViper(v); err != nil {
		return apperr.Wrap(apperr.Config, "load configuration", err)
	}

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return apperr.Wrap(apperr.Config, "log level", err)
	}
	logger, closeLog = logging.SetupLogger(settings.LogFile, level)
	return nil
}
