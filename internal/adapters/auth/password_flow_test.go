package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newAdapter(server *httptest.Server, now time.Time) PasswordFlowAdapter {
	api := DefaultAPI(server.URL + "/v1")
	api.UserAgent = "nearby-test"
	return PasswordFlowAdapter{
		API:        api,
		HTTPClient: server.Client(),
		Clock:      fixedClock{now: now},
	}
}

func TestLoginParsesGrant(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "nearby-test", r.Header.Get("User-Agent"))

		var body loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alex@example.com", body.Username)
		assert.Equal(t, "pw", body.Password)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_token":"tok-1","refresh_token":"ref-1","expires_in":3600,"profile_id":"42"}`))
	}))
	t.Cleanup(server.Close)

	grant, err := newAdapter(server, now).Login(context.Background(), domain.Credentials{Username: "alex@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionToken("tok-1"), grant.Token)
	assert.Equal(t, "ref-1", grant.RefreshToken)
	assert.Equal(t, "42", grant.ProfileID)
	assert.Equal(t, now.Add(time.Hour), grant.ExpiresAt)
}

func TestLoginWithoutExpiryLeavesItUnknown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"session_token":"tok-1"}`))
	}))
	t.Cleanup(server.Close)

	grant, err := newAdapter(server, time.Now()).Login(context.Background(), domain.Credentials{Username: "alex", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, grant.ExpiresAt.IsZero())
}

func TestLoginErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		header     map[string]string
		body       string
		wantIs     error
		wantSubstr string
	}{
		{name: "bad credentials", status: http.StatusUnauthorized, body: `{"code":"INVALID_CREDENTIALS","message":"wrong password"}`, wantIs: domain.ErrAuth, wantSubstr: "wrong password"},
		{name: "banned code", status: http.StatusForbidden, body: `{"code":"ACCOUNT_BANNED"}`, wantIs: domain.ErrBanned},
		{name: "banned header", status: http.StatusForbidden, header: map[string]string{"X-Account-Restricted": "1"}, wantIs: domain.ErrBanned},
		{name: "server error", status: http.StatusBadGateway, wantSubstr: "status 502"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)

			_, err := newAdapter(server, time.Now()).Login(context.Background(), domain.Credentials{Username: "alex", Password: "pw"})
			require.Error(t, err)
			if tc.wantIs != nil {
				assert.ErrorIs(t, err, tc.wantIs)
			} else {
				assert.NotErrorIs(t, err, domain.ErrAuth)
				assert.NotErrorIs(t, err, domain.ErrBanned)
			}
			if tc.wantSubstr != "" {
				assert.ErrorContains(t, err, tc.wantSubstr)
			}
		})
	}
}

func TestLoginValidatesCredentials(t *testing.T) {
	t.Parallel()

	adapter := PasswordFlowAdapter{API: DefaultAPI("http://127.0.0.1:1")}
	_, err := adapter.Login(context.Background(), domain.Credentials{Username: "alex"})
	assert.ErrorContains(t, err, "password or third-party user id is required")
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/refresh", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-1", body.RefreshToken)

		_, _ = w.Write([]byte(`{"session_token":"tok-2","expires_in":60}`))
	}))
	t.Cleanup(server.Close)

	grant, err := newAdapter(server, now).Refresh(context.Background(), domain.Session{Token: "tok-1", RefreshToken: "ref-1", ProfileID: "42"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionToken("tok-2"), grant.Token)
	assert.Equal(t, "ref-1", grant.RefreshToken)
	assert.Equal(t, "42", grant.ProfileID)
	assert.Equal(t, now.Add(time.Minute), grant.ExpiresAt)
}

func TestRefreshWithoutRefreshTokenIsAuthError(t *testing.T) {
	t.Parallel()

	adapter := PasswordFlowAdapter{API: DefaultAPI("http://127.0.0.1:1")}
	_, err := adapter.Refresh(context.Background(), domain.Session{Token: "tok-1"})
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	calls := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- r.Header.Get("Authorization")
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	adapter := newAdapter(server, time.Now())
	require.NoError(t, adapter.Logout(context.Background(), domain.Session{Token: "tok-1"}))
	require.NoError(t, adapter.Logout(context.Background(), domain.Session{Token: "stale"}))
	require.NoError(t, adapter.Logout(context.Background(), domain.Session{}))

	assert.Equal(t, "Bearer tok-1", <-calls)
	assert.Equal(t, "Bearer stale", <-calls)
	assert.Empty(t, calls)
}

func TestRequestTimesOutWithoutCallerDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"session_token":"tok-1"}`))
	}))
	t.Cleanup(server.Close)

	adapter := newAdapter(server, time.Now())
	adapter.RequestTimeout = 20 * time.Millisecond

	_, err := adapter.Login(context.Background(), domain.Credentials{Username: "alex", Password: "pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login: send request")
}

func TestBuildAPIURL(t *testing.T) {
	t.Parallel()

	got, err := buildAPIURL("https://api.example.test/v1", "auth/login")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/v1/auth/login", got)

	_, err = buildAPIURL("", "auth/login")
	assert.Error(t, err)
	_, err = buildAPIURL("ftp://api.example.test", "auth/login")
	assert.Error(t, err)
}
