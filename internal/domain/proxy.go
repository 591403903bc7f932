package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ProxyEndpoint is a point-in-time view of one egress endpoint. The pool owns the live state.
type ProxyEndpoint struct {
	Address             string
	Health              float64
	ConsecutiveFailures int
	CooldownUntil       time.Time
	CooldownCycles      int
	LastUsed            time.Time
	Disabled            bool
	Successes           int64
	Failures            int64
}

// Direct reports whether the endpoint means "no proxy".
func (e ProxyEndpoint) Direct() bool {
	return e.Address == ""
}

func (e ProxyEndpoint) InCooldown(now time.Time) bool {
	return e.CooldownUntil.After(now)
}

func (e ProxyEndpoint) Eligible(now time.Time) bool {
	return !e.Disabled && !e.InCooldown(now)
}

// URL parses the endpoint address. Direct endpoints return nil.
func (e ProxyEndpoint) URL() (*url.URL, error) {
	if e.Direct() {
		return nil, nil
	}
	return url.Parse(e.Address)
}

type ProxyStats struct {
	Total     int
	Eligible  int
	Cooling   int
	Disabled  int
	Current   string
	Endpoints []ProxyEndpoint
}

var supportedProxySchemes = map[string]struct{}{
	"http":    {},
	"https":   {},
	"socks5":  {},
	"socks5h": {},
}

// NormalizeProxyAddress trims the raw address, defaults the scheme to http and validates it.
func NormalizeProxyAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("proxy address is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse proxy address %q: %w", raw, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if _, ok := supportedProxySchemes[scheme]; !ok {
		return "", fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("proxy address %q has no host", raw)
	}
	if parsed.Port() == "" {
		return "", fmt.Errorf("proxy address %q has no port", raw)
	}
	parsed.Scheme = scheme
	parsed.Host = net.JoinHostPort(strings.ToLower(parsed.Hostname()), parsed.Port())
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), nil
}

// NormalizeProxyAddresses de-duplicates and validates a proxy list, preserving order.
func NormalizeProxyAddresses(raw []string) ([]string, error) {
	addresses := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		address, err := NormalizeProxyAddress(entry)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// RedactProxyAddress hides proxy credentials for display.
func RedactProxyAddress(address string) string {
	if address == "" {
		return "direct"
	}
	parsed, err := url.Parse(address)
	if err != nil || parsed.User == nil {
		return address
	}
	return parsed.Redacted()
}
