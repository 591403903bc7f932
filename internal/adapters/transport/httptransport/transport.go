package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"golang.org/x/net/proxy"
)

const (
	maxResponseBytes = 8 << 20

	// RestrictedHeader is set by the platform on responses to a restricted account.
	RestrictedHeader = "X-Account-Restricted"
)

// ErrResponseTooLarge is returned for response bodies over the read limit.
var ErrResponseTooLarge = errors.New("response body too large")

var restrictedCodes = map[string]struct{}{
	"ACCOUNT_BANNED":     {},
	"ACCOUNT_RESTRICTED": {},
	"ACCOUNT_SUSPENDED":  {},
}

type Config struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds one attempt including reading the body.
	Timeout time.Duration
}

// Transport sends platform requests through the egress endpoint chosen by the caller.
// One http.Client is kept per endpoint so connections are reused per egress IP.
type Transport struct {
	baseURL   *url.URL
	userAgent string
	timeout   time.Duration

	mu      sync.Mutex
	clients map[string]*http.Client
}

var _ ports.Transport = (*Transport)(nil)

func New(cfg Config) (*Transport, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("api base url host is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Transport{
		baseURL:   parsed,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		clients:   make(map[string]*http.Client),
	}, nil
}

func (t *Transport) Do(ctx context.Context, endpoint domain.ProxyEndpoint, token domain.SessionToken, req domain.Request) domain.RawResult {
	started := time.Now()
	result := t.do(ctx, endpoint, token, req)
	result.Latency = time.Since(started)
	return result
}

func (t *Transport) do(ctx context.Context, endpoint domain.ProxyEndpoint, token domain.SessionToken, req domain.Request) domain.RawResult {
	client, err := t.Client(endpoint)
	if err != nil {
		return domain.RawResult{ProxyErr: err}
	}

	httpReq, err := t.newRequest(ctx, token, req)
	if err != nil {
		return domain.RawResult{Err: err}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.RawResult{Err: fmt.Errorf("send request: %w", ctxErr)}
		}
		if isProxyError(err) {
			return domain.RawResult{ProxyErr: fmt.Errorf("send request via %s: %w", domain.RedactProxyAddress(endpoint.Address), err)}
		}
		return domain.RawResult{Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.RawResult{Err: fmt.Errorf("read response: %w", ctxErr)}
		}
		return domain.RawResult{Err: fmt.Errorf("read response: %w", err)}
	}
	if len(body) > maxResponseBytes {
		return domain.RawResult{Err: fmt.Errorf("read response: %w (limit %d bytes)", ErrResponseTooLarge, maxResponseBytes)}
	}

	return domain.RawResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Restricted: IsRestricted(resp.StatusCode, resp.Header, body),
	}
}

func (t *Transport) newRequest(ctx context.Context, token domain.SessionToken, req domain.Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := *t.baseURL
	target.Path = strings.TrimSuffix(t.baseURL.Path, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	target.RawQuery = ""
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if len(req.Body) > 0 {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+string(token))
	}

	return httpReq, nil
}

// Client returns the cached client that egresses through endpoint. The direct endpoint gets a
// client without a proxy.
func (t *Transport) Client(endpoint domain.ProxyEndpoint) (*http.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if client, ok := t.clients[endpoint.Address]; ok {
		return client, nil
	}

	transport, err := newHTTPTransport(endpoint)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Transport: transport, Timeout: t.timeout}
	t.clients[endpoint.Address] = client
	return client, nil
}

// CloseIdleConnections releases pooled connections of every cached client.
func (t *Transport) CloseIdleConnections() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, client := range t.clients {
		client.CloseIdleConnections()
	}
}

func newHTTPTransport(endpoint domain.ProxyEndpoint) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	proxyURL, err := endpoint.URL()
	if err != nil {
		return nil, fmt.Errorf("parse proxy address: %w", err)
	}
	if proxyURL == nil {
		return transport, nil
	}

	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = markProxyErrors(dialer.DialContext)
		transport.OnProxyConnectResponse = func(_ context.Context, _ *url.URL, _ *http.Request, resp *http.Response) error {
			switch resp.StatusCode {
			case http.StatusOK:
				return nil
			case http.StatusProxyAuthRequired, http.StatusForbidden:
				return &proxyError{err: fmt.Errorf("proxy CONNECT %s: %w", resp.Status, domain.ErrProxyBlocked)}
			default:
				return &proxyError{err: fmt.Errorf("proxy CONNECT %s", resp.Status)}
			}
		}
	case "socks5", "socks5h":
		socks, err := proxy.FromURL(proxyURL, dialer)
		if err != nil {
			return nil, fmt.Errorf("create socks5 dialer: %w", err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("socks5 dialer does not support contexts")
		}
		transport.DialContext = markSOCKSErrors(contextDialer.DialContext)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}

	return transport, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// proxyError marks a failure between the client and its proxy.
type proxyError struct {
	err error
}

func (e *proxyError) Error() string { return e.err.Error() }
func (e *proxyError) Unwrap() error { return e.err }

func markProxyErrors(dial dialFunc) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil && ctx.Err() == nil {
			return nil, &proxyError{err: err}
		}
		return conn, err
	}
}

func markSOCKSErrors(dial dialFunc) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err == nil || ctx.Err() != nil {
			return conn, err
		}
		// The SOCKS reply codes only surface as text.
		if strings.Contains(err.Error(), "not allowed by ruleset") {
			err = fmt.Errorf("%w: %w", domain.ErrProxyBlocked, err)
		}
		return nil, &proxyError{err: err}
	}
}

func isProxyError(err error) bool {
	var pe *proxyError
	if errors.As(err, &pe) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "proxyconnect"
}

type errorEnvelope struct {
	Code  string `json:"code"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

// IsRestricted reports whether a response carries the platform's account-restricted signal.
func IsRestricted(status int, header http.Header, body []byte) bool {
	if v := strings.ToLower(strings.TrimSpace(header.Get(RestrictedHeader))); v == "true" || v == "1" {
		return true
	}
	if status < http.StatusBadRequest || len(body) == 0 {
		return false
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	for _, code := range []string{envelope.Code, envelope.Error.Code} {
		if _, ok := restrictedCodes[strings.ToUpper(code)]; ok {
			return true
		}
	}
	return false
}
