// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	m := NewManagerWithRing(keyring.NewArrayKeyring(nil))

	_, err := m.LoadPassword("https://occ.example.com", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SavePassword("https://occ.example.com", "alice", "s3cret"))
	require.NoError(t, m.SavePassword("https://occ.example.com", "bob", "hunter2"))

	got, err := m.LoadPassword("HTTPS://OCC.example.com/", "alice")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, m.ClearPassword("https://occ.example.com", "alice"))
	_, err = m.LoadPassword("https://occ.example.com", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = m.LoadPassword("https://occ.example.com", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	assert.NoError(t, m.ClearPassword("https://occ.example.com", "nobody"))
}

func TestSaveEmptyPasswordRejected(t *testing.T) {
	m := NewManagerWithRing(keyring.NewArrayKeyring(nil))
	assert.Error(t, m.SavePassword("occ", "alice", ""))
}

func TestClearAllKeepsForeignItems(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "unrelated", Data: []byte("x")}})
	m := NewManagerWithRing(ring)
	require.NoError(t, m.SavePassword("occ-a", "alice", "a"))
	require.NoError(t, m.SavePassword("occ-b", "alice", "b"))

	require.NoError(t, m.ClearAll())

	keys, err := ring.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"unrelated"}, keys)
}

func TestOpenRingReportsMissingStore(t *testing.T) {
	orig := openKeyring
	t.Cleanup(func() { openKeyring = orig })
	openKeyring = func(keyring.Config) (keyring.Keyring, error) {
		return nil, errors.New("no backend")
	}

	_, err := openRing()
	require.Error(t, err)
}
