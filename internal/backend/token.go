// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"errors"
	"net/http"
)

// XSRFCookie is the anti-forgery cookie Capture Center issues at login.
const XSRFCookie = "XSRF-TOKEN"

// XSRFToken looks up the anti-forgery cookie in the session's cookie jar.
// It checks the REST root first and then the login endpoint, since a cookie
// issued without an explicit Path is scoped to the login request's directory.
func (h *HTTP) XSRFToken() (string, error) {
	candidates := []string{"", pathOTDSLogin}
	for _, p := range candidates {
		u, err := h.resolve(p)
		if err != nil {
			continue
		}
		if v := findCookie(h.jar.Cookies(u), XSRFCookie); v != "" {
			return v, nil
		}
	}
	return "", errors.New("no " + XSRFCookie + " cookie issued by login")
}

// findCookie returns the value of the named cookie, or "".
func findCookie(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// UseXSRFToken makes every subsequent request carry X-XSRF-TOKEN.
func (h *HTTP) UseXSRFToken(token string) {
	h.xsrfToken = token
}
