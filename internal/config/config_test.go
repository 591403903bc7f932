package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/nearby-cli/internal/dispatch"
	"github.com/bnema/nearby-cli/internal/proxypool"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dataDir := t.TempDir()
	v := viper.New()
	v.Set(KeyDataDir, dataDir)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "secrets"), cfg.SecretsDir)
	assert.Equal(t, filepath.Join(dataDir, "accounts.toml"), v.GetString(KeyAccountsPath))
	assert.Equal(t, filepath.Join(dataDir, "proxy_state.toml"), v.GetString(KeyProxyStatePath))
	assert.Equal(t, proxypool.DefaultConfig(), cfg.Pool)
	assert.Equal(t, dispatch.DefaultConfig(), cfg.Dispatch)
	assert.Equal(t, 4, cfg.Bulk.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SecretsBackendAuto, cfg.SecretsBackend)
	assert.Error(t, cfg.API.Validate(), "the platform URL has no default")
}

func TestLoadReadsConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(strings.Join([]string{
		"[api]",
		"base_url = \"https://api.example.test/\"",
		"",
		"[pool]",
		"failure_threshold = 5",
		"base_cooldown = \"1m\"",
		"",
		"[bulk]",
		"concurrency = 8",
		"",
	}, "\n")), 0o600))

	v := viper.New()
	v.Set(KeyDataDir, dataDir)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "config.toml"), cfg.File)
	assert.Equal(t, "https://api.example.test", cfg.API.BaseURL)
	assert.NoError(t, cfg.API.Validate())
	assert.Equal(t, 5, cfg.Pool.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Pool.BaseCooldown)
	assert.Equal(t, 8, cfg.Bulk.Concurrency)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("[api]\nbase_url = \"https://file.example.test\"\n"), 0o600))
	t.Setenv("NEARBY_API_BASE_URL", "https://env.example.test")
	t.Setenv("NEARBY_DISPATCH_MAX_RETRIES", "7")
	t.Setenv("NEARBY_LOG_LEVEL", "debug")

	v := viper.New()
	v.Set(KeyDataDir, dataDir)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.test", cfg.API.BaseURL)
	assert.Equal(t, 7, cfg.Dispatch.MaxRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr string
	}{
		{name: "log level", key: KeyLogLevel, value: "loud", wantErr: "unknown log level"},
		{name: "pool threshold", key: KeyPoolFailureThreshold, value: 0, wantErr: "validate pool config"},
		{name: "bulk concurrency", key: KeyBulkConcurrency, value: 0, wantErr: "bulk.concurrency"},
		{name: "negative retries", key: KeyDispatchMaxRetries, value: -1, wantErr: "dispatch.max_retries"},
		{name: "secrets backend", key: KeySecretsBackend, value: "vault", wantErr: "secrets.backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			v.Set(KeyDataDir, t.TempDir())
			v.Set(tc.key, tc.value)

			_, err := Load(v)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadMalformedConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("[api"), 0o600))

	v := viper.New()
	v.Set(KeyDataDir, dataDir)

	_, err := Load(v)
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config")
}

func TestAPIValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, API{BaseURL: "http://127.0.0.1:9000", Timeout: time.Second}.Validate())
	assert.ErrorContains(t, API{BaseURL: "api.example.test", Timeout: time.Second}.Validate(), "not an absolute URL")
	assert.ErrorContains(t, API{BaseURL: "https://api.example.test"}.Validate(), "api.timeout")
}
