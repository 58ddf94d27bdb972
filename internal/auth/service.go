// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"occingest/cli/internal/backend"
	apperr "occingest/cli/internal/errors"
)

const (
	// DefaultSessionTimeout is the server-side session timeout assumed when none is configured.
	DefaultSessionTimeout = 20 * time.Minute
	// DefaultSafetyMargin is subtracted from the session timeout to get the trust window.
	DefaultSafetyMargin = 5 * time.Minute
)

// Config holds what a Manager needs to log in.
type Config struct {
	Server   string
	Username string
	Password string

	// SessionTimeout is the server's session timeout. Zero means DefaultSessionTimeout.
	SessionTimeout time.Duration
	// SafetyMargin shortens the trust window. Zero means DefaultSafetyMargin.
	SafetyMargin time.Duration

	// Backend tunes the HTTP client of every session.
	Backend backend.Options
}

// Factory creates the backend for a new session.
type Factory func(server string, opts backend.Options) (backend.API, error)

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithFactory replaces backend.New.
func WithFactory(f Factory) Option {
	return func(m *Manager) { m.newAPI = f }
}

// Manager owns the session with one Capture Center server.
//
// The mutex only guards the session pointer and its verification time.
// Callers that pair AssertValid with batch calls must serialize those pairs.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
	newAPI Factory

	mu      sync.Mutex
	session *Session
}

// NewManager validates cfg and returns a Manager with no session.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	cfg.Server = strings.TrimSpace(cfg.Server)
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Server == "" {
		return nil, apperr.New(apperr.Config, "server address is required")
	}
	if cfg.Username == "" {
		return nil, apperr.New(apperr.Config, "username is required")
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}

	m := &Manager{
		cfg:    cfg,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newAPI: backend.New,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// TrustWindow is how long a verified session is used without a liveness call.
func (m *Manager) TrustWindow() time.Duration {
	return max(m.cfg.SessionTimeout-m.cfg.SafetyMargin, 0)
}

// Current returns the established session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Login discards the current session and performs the three login steps.
// On failure no session is kept.
func (m *Manager) Login(ctx context.Context) (*Session, error) {
	m.drop()

	api, err := m.newAPI(m.cfg.Server, m.cfg.Backend)
	if err != nil {
		return nil, apperr.Wrap(apperr.AuthFailed, "cannot create client", err)
	}

	s, err := m.login(ctx, api)
	if err != nil {
		api.Close()
		m.log.Warn("login failed", "server", m.cfg.Server, "user", m.cfg.Username, "error", err)
		return nil, err
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	m.log.Info("logged in", "server", m.cfg.Server, "user", m.cfg.Username)
	return s, nil
}

func (m *Manager) login(ctx context.Context, api backend.API) (*Session, error) {
	otdsPath, err := api.OTDSPath(ctx)
	if err != nil {
		return nil, authFailed("Get OTDS base path from OCC", err)
	}
	m.log.Debug("resolved OTDS", "otds_path", otdsPath)

	ticket, err := api.OTDSTicket(ctx, otdsPath, m.cfg.Username, m.cfg.Password)
	if err != nil {
		return nil, authFailed("Login to OTDS", err)
	}

	if err := api.OTDSLogin(ctx, ticket); err != nil {
		return nil, authFailed("OCC login", err)
	}

	token, err := api.XSRFToken()
	if err != nil {
		return nil, authFailed("Reading XSRF token", err)
	}
	api.UseXSRFToken(token)

	now := m.now()
	return &Session{
		Server:        m.cfg.Server,
		Username:      m.cfg.Username,
		Ticket:        ticket,
		XSRFToken:     token,
		API:           api,
		EstablishedAt: now,
		lastVerified:  now,
	}, nil
}

func authFailed(step string, err error) error {
	return apperr.Wrap(apperr.AuthFailed, "login failed", err).WithContext(step)
}

// AssertValid returns a session that is believed to be alive.
//
// A session verified inside the trust window is returned as is. Otherwise one
// account/currentUser call decides: success refreshes the verification time,
// failure triggers exactly one full login whose session replaces the old one.
func (m *Manager) AssertValid(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	s := m.session
	var v Validity
	if s != nil {
		v = judge(s.lastVerified, m.now(), m.TrustWindow())
	}
	m.mu.Unlock()

	if s == nil {
		return nil, apperr.New(apperr.NotLoggedIn, "no session established, log in first")
	}
	if v == Valid {
		return s, nil
	}

	v = m.check(ctx, s)
	m.log.Debug("session checked", "validity", v.String())
	if v == Valid {
		return s, nil
	}

	m.log.Info("session expired, logging in again", "server", m.cfg.Server, "user", m.cfg.Username)
	return m.Login(ctx)
}

// check performs the liveness call and records a successful verification.
func (m *Manager) check(ctx context.Context, s *Session) Validity {
	if _, err := s.API.CurrentUser(ctx); err != nil {
		m.log.Debug("liveness check failed", "error", err)
		return Expired
	}
	m.mu.Lock()
	if m.session == s {
		s.lastVerified = m.now()
	}
	m.mu.Unlock()
	return Valid
}

// LastVerified returns when the current session was last known to be alive.
func (m *Manager) LastVerified() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return time.Time{}
	}
	return m.session.lastVerified
}

// Close drops the session and releases its connections.
func (m *Manager) Close() {
	m.drop()
}

func (m *Manager) drop() {
	m.mu.Lock()
	old := m.session
	m.session = nil
	m.mu.Unlock()
	if old != nil {
		old.API.Close()
	}
}
