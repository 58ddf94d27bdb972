// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"errors"
	"fmt"

	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/keychain"
)

// PasswordStore persists passwords per server and user.
// keychain.Manager implements it.
type PasswordStore interface {
	SavePassword(server, username, password string) error
	LoadPassword(server, username string) (string, error)
	ClearPassword(server, username string) error
}

// ResolvePassword returns explicit when set, otherwise the stored password.
// A missing stored password is a NotLoggedIn error so callers can point the user at "login".
func ResolvePassword(store PasswordStore, server, username, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if store == nil {
		return "", apperr.New(apperr.NotLoggedIn, "no password given and no credential store available")
	}
	pw, err := store.LoadPassword(server, username)
	if errors.Is(err, keychain.ErrNotFound) {
		return "", apperr.New(apperr.NotLoggedIn, fmt.Sprintf("no stored password for %s on %s, run 'occingest login'", username, server))
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Config, "read stored password", err)
	}
	return pw, nil
}

// Remember stores the password of cfg.
func Remember(store PasswordStore, cfg Config) error {
	if err := store.SavePassword(cfg.Server, cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// Forget removes the stored password of server and username.
func Forget(store PasswordStore, server, username string) error {
	if err := store.ClearPassword(server, username); err != nil {
		return fmt.Errorf("remove stored password: %w", err)
	}
	return nil
}
