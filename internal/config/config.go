package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/nearby-cli/internal/dispatch"
	"github.com/bnema/nearby-cli/internal/platform/logging"
	"github.com/bnema/nearby-cli/internal/proxypool"
	"github.com/bnema/nearby-cli/internal/session"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "NEARBY"
	defaultDataDir = ".nearby"
	configFileName = "config.toml"
)

const (
	KeyConfigFile = "config"
	KeyDataDir    = "data_dir"
	KeyLogLevel   = "log.level"
	KeyLogFormat  = "log.format"

	KeyAPIBaseURL   = "api.base_url"
	KeyAPIUserAgent = "api.user_agent"
	KeyAPITimeout   = "api.timeout"

	KeyAccountsPath   = "accounts.path"
	KeyProxyStatePath = "proxy_state.path"
	KeySecretsDir     = "secrets.dir"
	KeySecretsBackend = "secrets.backend"

	KeyPoolHealthGain       = "pool.health_gain"
	KeyPoolFailurePenalty   = "pool.failure_penalty"
	KeyPoolMinHealth        = "pool.min_health"
	KeyPoolFailureThreshold = "pool.failure_threshold"
	KeyPoolBaseCooldown     = "pool.base_cooldown"
	KeyPoolMaxCooldown      = "pool.max_cooldown"

	KeySessionExpirySkew     = "session.expiry_skew"
	KeySessionRefreshTimeout = "session.refresh_timeout"

	KeyDispatchMaxRetries        = "dispatch.max_retries"
	KeyDispatchInitialBackoff    = "dispatch.initial_backoff"
	KeyDispatchMaxBackoff        = "dispatch.max_backoff"
	KeyDispatchRateLimitFloor    = "dispatch.rate_limit_floor"
	KeyDispatchExhaustedBackoff  = "dispatch.exhausted_backoff"
	KeyDispatchExhaustedMaxWait  = "dispatch.exhausted_max_wait"
	KeyDispatchCallTimeout       = "dispatch.call_timeout"
	KeyDispatchRequestsPerSecond = "dispatch.requests_per_second"
	KeyDispatchBurst             = "dispatch.burst"

	KeyBulkConcurrency = "bulk.concurrency"
	KeyBulkDeadline    = "bulk.deadline"

	KeyMetricsAddr = "metrics.addr"
)

const (
	SecretsBackendAuto = "auto"
	SecretsBackendPass = "pass"
	SecretsBackendFile = "file"
)

type API struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Validate is only required by commands that talk to the platform.
func (a API) Validate() error {
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("%s is required (set it in %s or %s_API_BASE_URL)", KeyAPIBaseURL, configFileName, envPrefix)
	}
	parsed, err := url.Parse(a.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s %q is not an absolute URL", KeyAPIBaseURL, a.BaseURL)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyAPITimeout)
	}
	return nil
}

type Bulk struct {
	Concurrency int
	Deadline    time.Duration
}

type Config struct {
	// File is the config file that was read, empty when none exists.
	File       string
	DataDir    string
	SecretsDir string
	// SecretsBackend is "auto" (pass with file fallback), "pass" or "file".
	SecretsBackend string
	LogLevel       string
	LogFormat      string

	API      API
	Pool     proxypool.Config
	Session  session.Config
	Dispatch dispatch.Config
	Bulk     Bulk

	MetricsAddr string
}

// Load resolves configuration from defaults, the TOML config file and NEARBY_* environment
// variables, in increasing priority. Repository path keys are written back into v so adapters
// reading the same viper instance agree with the resolved data directory.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir, err := resolveDataDir(v.GetString(KeyDataDir))
	if err != nil {
		return Config{}, err
	}

	configFile := v.GetString(KeyConfigFile)
	if configFile == "" {
		configFile = filepath.Join(dataDir, configFileName)
	}
	readFile, err := readConfigFile(v, configFile)
	if err != nil {
		return Config{}, err
	}

	// A data_dir from the file wins over the default.
	if fromFile := v.GetString(KeyDataDir); fromFile != "" {
		if dataDir, err = resolveDataDir(fromFile); err != nil {
			return Config{}, err
		}
	}
	for key, name := range map[string]string{
		KeyAccountsPath:   "accounts.toml",
		KeyProxyStatePath: "proxy_state.toml",
		KeySecretsDir:     "secrets",
	} {
		if v.GetString(key) == "" {
			v.Set(key, filepath.Join(dataDir, name))
		}
	}

	cfg := Config{
		File:           readFile,
		DataDir:        dataDir,
		SecretsDir:     v.GetString(KeySecretsDir),
		SecretsBackend: strings.ToLower(v.GetString(KeySecretsBackend)),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		API: API{
			BaseURL:   strings.TrimRight(v.GetString(KeyAPIBaseURL), "/"),
			UserAgent: v.GetString(KeyAPIUserAgent),
			Timeout:   v.GetDuration(KeyAPITimeout),
		},
		Pool: proxypool.Config{
			HealthGain:       v.GetFloat64(KeyPoolHealthGain),
			FailurePenalty:   v.GetFloat64(KeyPoolFailurePenalty),
			MinHealth:        v.GetFloat64(KeyPoolMinHealth),
			FailureThreshold: v.GetInt(KeyPoolFailureThreshold),
			BaseCooldown:     v.GetDuration(KeyPoolBaseCooldown),
			MaxCooldown:      v.GetDuration(KeyPoolMaxCooldown),
		},
		Session: session.Config{
			ExpirySkew:     v.GetDuration(KeySessionExpirySkew),
			RefreshTimeout: v.GetDuration(KeySessionRefreshTimeout),
		},
		Dispatch: dispatch.Config{
			MaxRetries:         v.GetInt(KeyDispatchMaxRetries),
			InitialBackoff:     v.GetDuration(KeyDispatchInitialBackoff),
			MaxBackoff:         v.GetDuration(KeyDispatchMaxBackoff),
			RateLimitFloor:     v.GetDuration(KeyDispatchRateLimitFloor),
			ExhaustedBackoff:   v.GetDuration(KeyDispatchExhaustedBackoff),
			ExhaustedMaxWait:   v.GetDuration(KeyDispatchExhaustedMaxWait),
			DefaultCallTimeout: v.GetDuration(KeyDispatchCallTimeout),
			RequestsPerSecond:  v.GetFloat64(KeyDispatchRequestsPerSecond),
			Burst:              v.GetInt(KeyDispatchBurst),
		},
		Bulk: Bulk{
			Concurrency: v.GetInt(KeyBulkConcurrency),
			Deadline:    v.GetDuration(KeyBulkDeadline),
		},
		MetricsAddr: v.GetString(KeyMetricsAddr),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	switch c.SecretsBackend {
	case SecretsBackendAuto, SecretsBackendPass, SecretsBackendFile:
	default:
		return fmt.Errorf("validate config: unsupported %s %q", KeySecretsBackend, c.SecretsBackend)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("validate pool config: %w", err)
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("validate dispatch config: %s must not be negative", KeyDispatchMaxRetries)
	}
	if c.Dispatch.DefaultCallTimeout <= 0 {
		return fmt.Errorf("validate dispatch config: %s must be positive", KeyDispatchCallTimeout)
	}
	if c.Bulk.Concurrency <= 0 {
		return fmt.Errorf("validate bulk config: %s must be positive", KeyBulkConcurrency)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	pool := proxypool.DefaultConfig()
	sess := session.DefaultConfig()
	disp := dispatch.DefaultConfig()

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeySecretsBackend, SecretsBackendAuto)
	v.SetDefault(KeyAPIUserAgent, "nearby-cli")
	v.SetDefault(KeyAPITimeout, 30*time.Second)

	v.SetDefault(KeyPoolHealthGain, pool.HealthGain)
	v.SetDefault(KeyPoolFailurePenalty, pool.FailurePenalty)
	v.SetDefault(KeyPoolMinHealth, pool.MinHealth)
	v.SetDefault(KeyPoolFailureThreshold, pool.FailureThreshold)
	v.SetDefault(KeyPoolBaseCooldown, pool.BaseCooldown)
	v.SetDefault(KeyPoolMaxCooldown, pool.MaxCooldown)

	v.SetDefault(KeySessionExpirySkew, sess.ExpirySkew)
	v.SetDefault(KeySessionRefreshTimeout, sess.RefreshTimeout)

	v.SetDefault(KeyDispatchMaxRetries, disp.MaxRetries)
	v.SetDefault(KeyDispatchInitialBackoff, disp.InitialBackoff)
	v.SetDefault(KeyDispatchMaxBackoff, disp.MaxBackoff)
	v.SetDefault(KeyDispatchRateLimitFloor, disp.RateLimitFloor)
	v.SetDefault(KeyDispatchExhaustedBackoff, disp.ExhaustedBackoff)
	v.SetDefault(KeyDispatchExhaustedMaxWait, disp.ExhaustedMaxWait)
	v.SetDefault(KeyDispatchCallTimeout, disp.DefaultCallTimeout)
	v.SetDefault(KeyDispatchRequestsPerSecond, disp.RequestsPerSecond)
	v.SetDefault(KeyDispatchBurst, disp.Burst)

	v.SetDefault(KeyBulkConcurrency, 4)
	v.SetDefault(KeyBulkDeadline, 5*time.Minute)

	// Bind keys without defaults so AutomaticEnv can see them through Get.
	for _, key := range []string{KeyConfigFile, KeyDataDir, KeyAPIBaseURL, KeyAccountsPath, KeyProxyStatePath, KeySecretsDir, KeyMetricsAddr} {
		_ = v.BindEnv(key)
	}
}

func resolveDataDir(configured string) (string, error) {
	dir := configured
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(homeDir, defaultDataDir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	return filepath.Clean(abs), nil
}

// readConfigFile merges path into v. A missing file is not an error.
func readConfigFile(v *viper.Viper, path string) (string, error) {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read config %s: %w", path, err)
	}
	return path, nil
}
