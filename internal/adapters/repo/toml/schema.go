package toml

import "fmt"

const (
	currentAccountsSchemaVersion   = 1
	currentProxyStateSchemaVersion = 1
)

type accountsFileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *accountsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentAccountsSchemaVersion
	}
}

func (s accountsFileSchema) validateVersion() error {
	if s.Version > currentAccountsSchemaVersion {
		return fmt.Errorf("unsupported accounts schema version %d (current %d)", s.Version, currentAccountsSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	ID               string          `toml:"id"`
	Name             string          `toml:"name"`
	Username         string          `toml:"username"`
	ThirdPartyUserID string          `toml:"third_party_user_id,omitempty"`
	PasswordRef      string          `toml:"password_ref,omitempty"`
	SessionRef       string          `toml:"session_ref,omitempty"`
	Proxies          []string        `toml:"proxies,omitempty"`
	Location         *locationSchema `toml:"location,omitempty"`
}

type locationSchema struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	City      string  `toml:"city,omitempty"`
	Country   string  `toml:"country,omitempty"`
}

type proxyStateFileSchema struct {
	Version  int                  `toml:"version"`
	Accounts []accountProxySchema `toml:"accounts"`
}

func (s *proxyStateFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentProxyStateSchemaVersion
	}
}

func (s proxyStateFileSchema) validateVersion() error {
	if s.Version > currentProxyStateSchemaVersion {
		return fmt.Errorf("unsupported proxy state schema version %d (current %d)", s.Version, currentProxyStateSchemaVersion)
	}

	return nil
}

type accountProxySchema struct {
	AccountID string           `toml:"account_id"`
	Endpoints []endpointSchema `toml:"endpoints"`
}

type endpointSchema struct {
	Address             string  `toml:"address"`
	Health              float64 `toml:"health"`
	ConsecutiveFailures int     `toml:"consecutive_failures"`
	CooldownUntil       string  `toml:"cooldown_until,omitempty"`
	CooldownCycles      int     `toml:"cooldown_cycles"`
	LastUsed            string  `toml:"last_used,omitempty"`
	Disabled            bool    `toml:"disabled"`
	Successes           int64   `toml:"successes"`
	Failures            int64   `toml:"failures"`
}
