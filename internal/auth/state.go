// Package auth manages the Capture Center session lifecycle for the CLI.
// It performs the three-step OTDS login, keeps the anti-forgery token attached to
// the session's HTTP client and renews the session when the server has forgotten it.
//
// A Manager owns at most one Session. Callers obtain the session through
// AssertValid before every batch operation; the Manager decides whether the
// session can be trusted as is, needs a liveness check, or must be replaced.
package auth

import (
	"time"

	"occingest/cli/internal/backend"
)

// Session is an established, authenticated context against one server.
// A Session is replaced wholesale on every successful login and is never
// mutated by callers.
type Session struct {
	Server   string
	Username string
	// Ticket is the OTDS ticket redeemed for this session.
	Ticket string
	// XSRFToken is sent as X-XSRF-TOKEN on every call made through API.
	XSRFToken string
	// API owns the session cookies.
	API backend.API

	EstablishedAt time.Time
	// lastVerified is guarded by the owning Manager.
	lastVerified time.Time
}

// Validity is the outcome of judging whether a session can still be used.
type Validity int

const (
	// Unknown means the session has not been verified recently and needs a liveness call.
	Unknown Validity = iota
	// Valid means the session was verified inside the trust window.
	Valid
	// Expired means the liveness call failed and the session must be replaced.
	Expired
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// judge classifies a session by the age of its last verification. Only an
// age beyond the window needs a liveness call; a non-positive window means
// every session needs one.
func judge(lastVerified, now time.Time, window time.Duration) Validity {
	if window > 0 && now.Sub(lastVerified) <= window {
		return Valid
	}
	return Unknown
}
