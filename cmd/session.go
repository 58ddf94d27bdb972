package cmd

import (
	"context"
	"path/filepath"

	"occingest/cli/internal/auth"
	"occingest/cli/internal/backend"
	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/ingest"
	"occingest/cli/internal/journal"
	"occingest/cli/internal/keychain"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pterm/pterm"
)

// rootFS resolves the absolute paths produced by absPaths.
var rootFS = osfs.New("/")

// passwordStore returns the OS keychain, or nil when it is disabled or unavailable.
func passwordStore() auth.PasswordStore {
	if settings.NoKeychain {
		return nil
	}
	km, err := keychain.GetManager()
	if err != nil {
		logger.Warn("keychain unavailable", "error", err)
		return nil
	}
	return km
}

// authConfig builds the session settings from the loaded configuration.
func authConfig(password string) auth.Config {
	return auth.Config{
		Server:         settings.Server,
		Username:       settings.Username,
		Password:       password,
		SessionTimeout: settings.SessionTimeout(),
		Backend: backend.Options{
			DefaultTimeout:          settings.RequestTimeout(),
			MillisecondsPerMegabyte: settings.MillisecondsPerMegabyte,
			Filesystem:              rootFS,
		},
	}
}

// connect resolves the password, logs in and returns the session manager.
// Callers must Close it.
func connect(ctx context.Context) (*auth.Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Config, "incomplete configuration", err)
	}
	pw, err := auth.ResolvePassword(passwordStore(), settings.Server, settings.Username, settings.Password)
	if err != nil {
		return nil, err
	}
	m, err := auth.NewManager(authConfig(pw), auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Logging in to " + settings.Server)
	_, err = m.Login(ctx)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// newIngestService wires a Service with the journal observer, when configured,
// and opts. The returned cleanup releases the journal connection.
func newIngestService(ctx context.Context, m *auth.Manager, opts ...ingest.Option) (*ingest.Service, func(), error) {
	base := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithCreationStateInquiry(settings.SupportsBatchCreationStateInquiry),
		ingest.WithFilesystem(rootFS),
	}
	cleanup := func() {}
	if settings.JournalDSN != "" {
		j, err := journal.Open(ctx, settings.JournalDSN)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.Config, "open journal", err)
		}
		base = append(base, ingest.WithObservers(j))
		cleanup = j.Close
	}
	return ingest.New(m, append(base, opts...)...), cleanup, nil
}

// absPaths makes file arguments absolute so they resolve against rootFS.
func absPaths(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		a, err := filepath.Abs(f)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, "resolve "+f, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// requireProfile returns the configured profile or an InvalidInput error.
func requireProfile() (string, error) {
	if settings.Profile == "" {
		return "", apperr.New(apperr.InvalidInput, "profile is not set (--profile or OCCINGEST_PROFILE)")
	}
	return settings.Profile, nil
}
