// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for occingest.
// It stores the Capture Center password of each server and user pair in the OS
// credential store so that the password never lands in the config file.
//
// On macOS the native security command is tried first. Everywhere else the
// 99designs/keyring library picks a native backend (Windows Credential Manager,
// Secret Service, KWallet or pass). There is deliberately no plain-file fallback.
package keychain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// ErrNotFound is returned when no password is stored for a server and user.
var ErrNotFound = errors.New("no stored password")

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "occingest"

// keyPrefix namespaces password items inside the service.
const keyPrefix = "occ_password"

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend is a native credential store used instead of the keyring library.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// openKeyring is swapped in tests.
var openKeyring = keyring.Open

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// pass covers macOS releases where the Keychain API refuses unsigned binaries
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		allowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		}
	}

	cfg := keyring.Config{
		ServiceName:             ServiceName,
		AllowedBackends:         allowedBackends,
		PassPrefix:              ServiceName,
		WinCredPrefix:           ServiceName,
		LibSecretCollectionName: "login",
		KWalletAppID:            ServiceName,
		KWalletFolder:           ServiceName,
	}

	ring, err := openKeyring(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. Install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, fmt.Errorf("no secure credential store available (use --password or OCCINGEST_PASSWORD instead): %w", err)
	}
	return ring, nil
}

// passwordKey derives the item key for one server and user pair.
// Server addresses differing only in case or a trailing slash share a key.
func passwordKey(server, username string) string {
	s := strings.ToLower(strings.TrimRight(strings.TrimSpace(server), "/"))
	return keyPrefix + ":" + s + ":" + strings.TrimSpace(username)
}

// SavePassword stores the password for server and username.
// This method is thread-safe.
func (m *Manager) SavePassword(server, username, password string) error {
	if password == "" {
		return errors.New("refusing to store an empty password")
	}
	key := passwordKey(server, username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(key, password)
	}
	return m.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(password),
		Label:       "Capture Center password for " + username,
		Description: server,
	})
}

// LoadPassword retrieves the password for server and username.
// It returns ErrNotFound when nothing is stored.
// This method is thread-safe.
func (m *Manager) LoadPassword(server, username string) (string, error) {
	key := passwordKey(server, username)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		v, err := m.backend.Get(key)
		if err != nil {
			return "", err
		}
		if v == "" {
			return "", ErrNotFound
		}
		return v, nil
	}

	it, err := m.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// ClearPassword removes the password for server and username. A missing item is not an error.
// This method is thread-safe.
func (m *Manager) ClearPassword(server, username string) error {
	key := passwordKey(server, username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(key)
	}
	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// ClearAll removes every password this tool stored.
// This method is thread-safe and should be used with caution.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		// the security command cannot enumerate by prefix
		return errors.New("clearing all passwords is not supported by the macOS security backend")
	}

	keys, err := m.ring.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if strings.HasPrefix(k, keyPrefix+":") {
			_ = m.ring.Remove(k)
		}
	}
	return nil
}
