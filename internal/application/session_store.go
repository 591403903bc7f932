package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
)

// SessionStore keeps each account's session in the secret store so a login survives between runs.
type SessionStore struct {
	store ports.SecretStore
}

func NewSessionStore(store ports.SecretStore) *SessionStore {
	return &SessionStore{store: store}
}

type sessionRecord struct {
	Token        string `json:"session_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	IssuedAt     int64  `json:"issued_at,omitempty"`
	State        string `json:"state"`
	ProfileID    string `json:"profile_id,omitempty"`
}

func (s *SessionStore) Load(ctx context.Context, id domain.AccountID) (domain.Session, error) {
	raw, err := s.store.Get(ctx, domain.SessionSecretKey(id))
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return domain.Session{}, fmt.Errorf("load session for %s: %w", id, domain.ErrSessionNotFound)
		}
		return domain.Session{}, fmt.Errorf("load session for %s: %w", id, err)
	}

	session, err := decodeSession(raw)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session for %s: %w", id, err)
	}
	return session, nil
}

// Save persists s. Logged-out sessions are deleted and transitional states are not written.
func (s *SessionStore) Save(ctx context.Context, id domain.AccountID, session domain.Session) error {
	switch session.State {
	case domain.SessionAuthenticating, domain.SessionRefreshing:
		return nil
	case domain.SessionLoggedOut, "":
		return s.Delete(ctx, id)
	}

	raw, err := encodeSession(session)
	if err != nil {
		return fmt.Errorf("save session for %s: %w", id, err)
	}
	if err := s.store.Put(ctx, domain.SessionSecretKey(id), raw); err != nil {
		return fmt.Errorf("save session for %s: %w", id, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id domain.AccountID) error {
	if err := s.store.Delete(ctx, domain.SessionSecretKey(id)); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		return fmt.Errorf("delete session for %s: %w", id, err)
	}
	return nil
}

func encodeSession(session domain.Session) (string, error) {
	record := sessionRecord{
		Token:        string(session.Token),
		RefreshToken: session.RefreshToken,
		State:        string(session.State),
		ProfileID:    session.ProfileID,
	}
	if !session.ExpiresAt.IsZero() {
		record.ExpiresAt = session.ExpiresAt.Unix()
	}
	if !session.IssuedAt.IsZero() {
		record.IssuedAt = session.IssuedAt.Unix()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(payload), nil
}

func decodeSession(raw string) (domain.Session, error) {
	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}

	session := domain.Session{
		Token:        domain.SessionToken(record.Token),
		RefreshToken: record.RefreshToken,
		State:        domain.SessionState(record.State),
		ProfileID:    record.ProfileID,
	}
	if record.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(record.ExpiresAt, 0).UTC()
	}
	if record.IssuedAt > 0 {
		session.IssuedAt = time.Unix(record.IssuedAt, 0).UTC()
	}
	return session, nil
}
