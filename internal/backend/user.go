// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"net/http"
)

// CurrentUser calls GET account/currentUser.
// Any failure means the session can no longer be trusted.
func (h *HTTP) CurrentUser(ctx context.Context) (Account, error) {
	const errContext = "Reading account information"
	resp, err := h.do(ctx, request{method: http.MethodGet, path: pathCurrentUser, errContext: errContext})
	if err != nil {
		return Account{}, err
	}
	var acc Account
	if len(resp.body) == 0 {
		return acc, nil
	}
	if err := decode(resp.body, &acc, errContext); err != nil {
		return Account{}, err
	}
	return acc, nil
}
