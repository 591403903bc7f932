package domain

import "time"

type SessionState string

const (
	SessionLoggedOut      SessionState = "logged_out"
	SessionAuthenticating SessionState = "authenticating"
	SessionActive         SessionState = "active"
	SessionRefreshing     SessionState = "refreshing"
	SessionExpired        SessionState = "expired"
	SessionBanned         SessionState = "banned"
)

func (s SessionState) Label() string {
	switch s {
	case SessionLoggedOut:
		return "logged out"
	case SessionAuthenticating:
		return "authenticating"
	case SessionActive:
		return "active"
	case SessionRefreshing:
		return "refreshing"
	case SessionExpired:
		return "expired"
	case SessionBanned:
		return "banned"
	default:
		return string(s)
	}
}

// SessionToken is the credential attached to every dispatched call.
type SessionToken string

// Session is the authenticated context required to execute calls.
// Tokens never leave the process through JSON output.
type Session struct {
	Token        SessionToken `json:"-"`
	RefreshToken string       `json:"-"`
	// ExpiresAt is zero when the platform did not announce an expiry.
	ExpiresAt time.Time
	State     SessionState
	ProfileID string
	IssuedAt  time.Time
}

func (s Session) ExpiryKnown() bool {
	return !s.ExpiresAt.IsZero()
}

// ExpiredAt reports whether the token should be considered expired at now, given a safety skew.
func (s Session) ExpiredAt(now time.Time, skew time.Duration) bool {
	if !s.ExpiryKnown() {
		return false
	}
	return !s.ExpiresAt.After(now.Add(skew))
}

// AuthGrant is what an authenticator returns after a successful login or refresh.
type AuthGrant struct {
	Token        SessionToken
	RefreshToken string
	ExpiresAt    time.Time
	ProfileID    string
}
