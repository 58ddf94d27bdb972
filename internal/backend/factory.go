// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

// New creates a backend API implementation for the given server address.
// Every call returns a client with a fresh cookie jar, so a new value is needed per login.
func New(server string, opts Options) (API, error) {
	h, err := newHTTP(server, opts)
	if err != nil {
		return nil, err
	}
	return h, nil
}
