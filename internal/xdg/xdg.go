// Package xdg provides helpers to resolve XDG Base Directory paths for occingest.
// It implements the XDG Base Directory specification for determining appropriate
// the location of the configuration file on Unix-like systems.
//
// The package handles fallback to traditional locations when XDG environment
// variables are not set and ensures private permissions on the directories it creates.
package xdg

import (
	"os"
	"path/filepath"
)

const appDir = "occingest"

// ConfigDir returns the XDG config directory for occingest.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/occingest when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

func dir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	d := filepath.Join(base, appDir)
	if err := os.MkdirAll(d, 0o700); err != nil { // private dir
		return "", err
	}
	return d, nil
}
