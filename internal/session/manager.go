package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

type Config struct {
	// ExpirySkew treats a token as expired this long before its announced expiry.
	ExpirySkew time.Duration
	// RefreshTimeout bounds a refresh independently of the caller that triggered it.
	RefreshTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExpirySkew:     30 * time.Second,
		RefreshTimeout: 30 * time.Second,
	}
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithListener registers a callback invoked with the new session after every state change.
func WithListener(fn func(domain.Session)) Option {
	return func(m *Manager) {
		m.listener = fn
	}
}

// Manager owns the single live session of one account. It is the only writer of the token.
type Manager struct {
	auth     ports.Authenticator
	clock    ports.Clock
	cfg      Config
	logger   *slog.Logger
	listener func(domain.Session)

	mu         sync.RWMutex
	session    domain.Session
	creds      *domain.Credentials
	generation uint64
	banReason  string

	flight singleflight.Group
}

func NewManager(auth ports.Authenticator, clock ports.Clock, cfg Config, opts ...Option) *Manager {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultConfig().RefreshTimeout
	}

	m := &Manager{
		auth:    auth,
		clock:   clock,
		cfg:     cfg,
		logger:  slog.Default(),
		session: domain.Session{State: domain.SessionLoggedOut},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates with creds and reports a human-readable message either way.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) (bool, string) {
	if err := creds.Validate(); err != nil {
		return false, fmt.Sprintf("invalid credentials: %v", err)
	}

	m.mu.Lock()
	if m.session.State == domain.SessionBanned {
		m.mu.Unlock()
		return false, m.bannedMessage()
	}
	m.generation++
	gen := m.generation
	m.session = domain.Session{State: domain.SessionAuthenticating}
	m.mu.Unlock()

	m.logger.Debug("logging in", "username", creds.Username)
	grant, err := m.auth.Login(ctx, creds)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return false, "login superseded by logout"
	}
	if err != nil {
		if errors.Is(err, domain.ErrBanned) {
			m.session = domain.Session{State: domain.SessionBanned}
			m.banReason = err.Error()
		} else {
			m.session = domain.Session{State: domain.SessionLoggedOut}
		}
		snapshot := m.session
		m.mu.Unlock()
		m.notify(snapshot)
		m.logger.Warn("login failed", "username", creds.Username, "error", err)
		return false, fmt.Sprintf("login failed: %v", err)
	}

	stored := creds
	m.creds = &stored
	m.session = m.sessionFromGrant(grant)
	snapshot := m.session
	m.mu.Unlock()

	m.notify(snapshot)
	m.logger.Info("logged in", "username", creds.Username, "expires_at", snapshot.ExpiresAt)
	return true, fmt.Sprintf("logged in as %s", creds.Username)
}

// EnsureValid returns a usable token, refreshing it first when it has expired.
func (m *Manager) EnsureValid(ctx context.Context) (domain.SessionToken, error) {
	for attempt := 0; attempt < 2; attempt++ {
		m.mu.RLock()
		state := m.session.State
		token := m.session.Token
		expired := m.session.ExpiredAt(m.clock.Now(), m.cfg.ExpirySkew)
		m.mu.RUnlock()

		switch state {
		case domain.SessionBanned:
			return "", domain.ErrBanned
		case domain.SessionLoggedOut, domain.SessionAuthenticating:
			return "", domain.ErrNotAuthenticated
		case domain.SessionActive:
			if !expired {
				return token, nil
			}
		}

		if attempt > 0 {
			break
		}
		if err := m.refresh(ctx, false); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: session did not become active after refresh", domain.ErrAuth)
}

// Refresh forces a token refresh even when the current token is still valid.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, true)
}

func (m *Manager) refresh(ctx context.Context, force bool) error {
	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RefreshTimeout)
		defer cancel()
		return nil, m.doRefresh(refreshCtx, force)
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for session refresh: %w", ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) doRefresh(ctx context.Context, force bool) error {
	m.mu.Lock()
	switch m.session.State {
	case domain.SessionBanned:
		m.mu.Unlock()
		return domain.ErrBanned
	case domain.SessionLoggedOut, domain.SessionAuthenticating:
		m.mu.Unlock()
		return domain.ErrNotAuthenticated
	case domain.SessionActive:
		if !force && !m.session.ExpiredAt(m.clock.Now(), m.cfg.ExpirySkew) {
			m.mu.Unlock()
			return nil
		}
	}
	gen := m.generation
	current := m.session
	creds := m.creds
	m.session.State = domain.SessionRefreshing
	m.mu.Unlock()

	m.logger.Debug("refreshing session", "generation", gen)

	var (
		grant domain.AuthGrant
		err   error
	)
	switch {
	case current.RefreshToken != "":
		grant, err = m.auth.Refresh(ctx, current)
	case creds != nil:
		grant, err = m.auth.Login(ctx, *creds)
	default:
		err = errors.New("no refresh token or stored credentials")
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	if m.session.State == domain.SessionBanned {
		m.mu.Unlock()
		return domain.ErrBanned
	}
	if err != nil {
		if errors.Is(err, domain.ErrBanned) {
			m.session = domain.Session{State: domain.SessionBanned}
			m.banReason = err.Error()
		} else {
			m.session = domain.Session{State: domain.SessionLoggedOut}
		}
		snapshot := m.session
		m.mu.Unlock()

		m.notify(snapshot)
		m.logger.Warn("session refresh failed", "error", err, "state", snapshot.State)
		if snapshot.State == domain.SessionBanned {
			return fmt.Errorf("refresh session: %w", err)
		}
		return fmt.Errorf("%w: refresh session: %v", domain.ErrAuth, err)
	}

	if grant.RefreshToken == "" {
		grant.RefreshToken = current.RefreshToken
	}
	if grant.ProfileID == "" {
		grant.ProfileID = current.ProfileID
	}
	m.session = m.sessionFromGrant(grant)
	snapshot := m.session
	m.mu.Unlock()

	m.notify(snapshot)
	m.logger.Info("session refreshed", "expires_at", snapshot.ExpiresAt)
	return nil
}

// Logout ends the session. In-flight calls keep running but their outcomes belong to a stale generation.
func (m *Manager) Logout(ctx context.Context) bool {
	m.mu.Lock()
	switch m.session.State {
	case domain.SessionBanned, domain.SessionLoggedOut:
		m.mu.Unlock()
		return false
	}
	previous := m.session
	m.session = domain.Session{State: domain.SessionLoggedOut}
	m.creds = nil
	m.generation++
	snapshot := m.session
	m.mu.Unlock()

	m.notify(snapshot)

	if previous.Token != "" {
		if err := m.auth.Logout(ctx, previous); err != nil {
			m.logger.Warn("remote logout failed", "error", err)
		}
	}
	m.logger.Info("logged out")
	return true
}

// MarkBanned moves the session to the terminal Banned state.
func (m *Manager) MarkBanned(reason string) {
	m.mu.Lock()
	if m.session.State == domain.SessionBanned {
		m.mu.Unlock()
		return
	}
	m.session = domain.Session{State: domain.SessionBanned}
	m.banReason = reason
	snapshot := m.session
	m.mu.Unlock()

	m.notify(snapshot)
	m.logger.Warn("session banned", "reason", reason)
}

// MarkExpired flags token as expired so the next EnsureValid refreshes it. Stale tokens are ignored.
func (m *Manager) MarkExpired(token domain.SessionToken) {
	m.mu.Lock()
	if m.session.State != domain.SessionActive || m.session.Token != token {
		m.mu.Unlock()
		return
	}
	m.session.State = domain.SessionExpired
	snapshot := m.session
	m.mu.Unlock()

	m.notify(snapshot)
	m.logger.Debug("session marked expired")
}

func (m *Manager) IsBanned() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State == domain.SessionBanned
}

func (m *Manager) State() domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State
}

// Generation changes on every login and logout.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Status reports whether the session can serve calls right now, without touching the network.
func (m *Manager) Status() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	switch m.session.State {
	case domain.SessionActive:
		if m.session.ExpiredAt(now, m.cfg.ExpirySkew) {
			return false, "session expired, refresh required"
		}
		if !m.session.ExpiryKnown() {
			return true, "logged in"
		}
		return true, fmt.Sprintf("logged in, token expires in %s", m.session.ExpiresAt.Sub(now).Round(time.Second))
	case domain.SessionBanned:
		return false, m.bannedMessage()
	default:
		return false, m.session.State.Label()
	}
}

// Snapshot returns a copy of the live session.
func (m *Manager) Snapshot() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Restore resumes a persisted session. creds, when given, back up a missing refresh token.
func (m *Manager) Restore(s domain.Session, creds *domain.Credentials) {
	m.mu.Lock()
	if s.State == domain.SessionActive && s.ExpiredAt(m.clock.Now(), m.cfg.ExpirySkew) {
		s.State = domain.SessionExpired
	}
	if s.State == domain.SessionRefreshing || s.State == domain.SessionAuthenticating {
		s.State = domain.SessionExpired
	}
	if s.State == "" || (s.Token == "" && s.State != domain.SessionBanned) {
		s.State = domain.SessionLoggedOut
	}
	m.session = s
	if creds != nil {
		stored := *creds
		m.creds = &stored
	}
	m.generation++
	m.mu.Unlock()
}

func (m *Manager) sessionFromGrant(grant domain.AuthGrant) domain.Session {
	return domain.Session{
		Token:        grant.Token,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		ProfileID:    grant.ProfileID,
		State:        domain.SessionActive,
		IssuedAt:     m.clock.Now(),
	}
}

// bannedMessage must be called with mu held.
func (m *Manager) bannedMessage() string {
	if m.banReason == "" {
		return "account banned"
	}
	return "account banned: " + m.banReason
}

func (m *Manager) notify(s domain.Session) {
	if m.listener != nil {
		m.listener(s)
	}
}
