package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/nearby-cli/internal/adapters/transport/httptransport"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
)

const maxAuthResponseBytes = 1 << 20

type API struct {
	BaseURL     string
	LoginPath   string
	RefreshPath string
	LogoutPath  string
	UserAgent   string
}

func DefaultAPI(baseURL string) API {
	return API{
		BaseURL:     baseURL,
		LoginPath:   "auth/login",
		RefreshPath: "auth/refresh",
		LogoutPath:  "auth/logout",
	}
}

// PasswordFlowAdapter exchanges credentials for platform sessions.
type PasswordFlowAdapter struct {
	API            API
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Clock          ports.Clock
}

var _ ports.Authenticator = PasswordFlowAdapter{}

type loginRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password,omitempty"`
	ThirdPartyUserID string `json:"third_party_user_id,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResult struct {
	SessionToken string `json:"session_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ProfileID    string `json:"profile_id"`
}

type authErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a PasswordFlowAdapter) Login(ctx context.Context, creds domain.Credentials) (domain.AuthGrant, error) {
	if err := creds.Validate(); err != nil {
		return domain.AuthGrant{}, fmt.Errorf("login: %w", err)
	}

	token, err := a.post(ctx, a.API.LoginPath, "", loginRequest{
		Username:         creds.Username,
		Password:         creds.Password,
		ThirdPartyUserID: creds.ThirdPartyUserID,
	})
	if err != nil {
		return domain.AuthGrant{}, fmt.Errorf("login: %w", err)
	}

	return a.grant(token), nil
}

func (a PasswordFlowAdapter) Refresh(ctx context.Context, session domain.Session) (domain.AuthGrant, error) {
	if session.RefreshToken == "" {
		return domain.AuthGrant{}, fmt.Errorf("refresh session: %w: no refresh token", domain.ErrAuth)
	}

	token, err := a.post(ctx, a.API.RefreshPath, session.Token, refreshRequest{RefreshToken: session.RefreshToken})
	if err != nil {
		return domain.AuthGrant{}, fmt.Errorf("refresh session: %w", err)
	}

	grant := a.grant(token)
	if grant.RefreshToken == "" {
		grant.RefreshToken = session.RefreshToken
	}
	if grant.ProfileID == "" {
		grant.ProfileID = session.ProfileID
	}
	return grant, nil
}

func (a PasswordFlowAdapter) Logout(ctx context.Context, session domain.Session) error {
	if session.Token == "" {
		return nil
	}

	endpoint, err := buildAPIURL(a.API.BaseURL, a.API.LogoutPath)
	if err != nil {
		return err
	}

	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create logout request: %w", err)
	}
	a.setHeaders(req, session.Token)

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// An already invalid session is logged out as far as the caller is concerned.
	if resp.StatusCode == http.StatusUnauthorized {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("logout: %w", decodeAuthError(resp))
	}
	return nil
}

func (a PasswordFlowAdapter) post(ctx context.Context, path string, bearer domain.SessionToken, payload any) (TokenResult, error) {
	endpoint, err := buildAPIURL(a.API.BaseURL, path)
	if err != nil {
		return TokenResult{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return TokenResult{}, fmt.Errorf("encode request: %w", err)
	}

	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return TokenResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.setHeaders(req, bearer)

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return TokenResult{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return TokenResult{}, decodeAuthError(resp)
	}

	var token TokenResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthResponseBytes)).Decode(&token); err != nil {
		return TokenResult{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.SessionToken == "" {
		return TokenResult{}, errors.New("token response missing session token")
	}
	return token, nil
}

func (a PasswordFlowAdapter) grant(token TokenResult) domain.AuthGrant {
	grant := domain.AuthGrant{
		Token:        domain.SessionToken(token.SessionToken),
		RefreshToken: token.RefreshToken,
		ProfileID:    token.ProfileID,
	}
	if token.ExpiresIn > 0 {
		grant.ExpiresAt = a.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return grant
}

func (a PasswordFlowAdapter) setHeaders(req *http.Request, bearer domain.SessionToken) {
	req.Header.Set("Accept", "application/json")
	if a.API.UserAgent != "" {
		req.Header.Set("User-Agent", a.API.UserAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+string(bearer))
	}
}

func (a PasswordFlowAdapter) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a PasswordFlowAdapter) now() time.Time {
	if a.Clock != nil {
		return a.Clock.Now()
	}
	return time.Now()
}

func (a PasswordFlowAdapter) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := a.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// decodeAuthError maps a failed auth response onto the domain sentinels.
func decodeAuthError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxAuthResponseBytes))

	var authErr authErrorResponse
	_ = json.Unmarshal(body, &authErr)
	detail := formatAuthError(resp.StatusCode, authErr)

	switch {
	case httptransport.IsRestricted(resp.StatusCode, resp.Header, body):
		return fmt.Errorf("%w: %s", domain.ErrBanned, detail)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrAuth, detail)
	default:
		return errors.New(detail)
	}
}

func formatAuthError(statusCode int, authErr authErrorResponse) string {
	switch {
	case authErr.Code != "" && authErr.Message != "":
		return authErr.Code + ": " + authErr.Message
	case authErr.Message != "":
		return authErr.Message
	case authErr.Code != "":
		return authErr.Code
	default:
		return fmt.Sprintf("status %d", statusCode)
	}
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}
	if parsed.Path != "" && parsed.Path[len(parsed.Path)-1] != '/' {
		parsed.Path += "/"
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
