package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bnema/nearby-cli/internal/adapters/auth"
	statusadapter "github.com/bnema/nearby-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/nearby-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/nearby-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/nearby-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/nearby-cli/internal/adapters/secrets/pass"
	"github.com/bnema/nearby-cli/internal/adapters/transport/httptransport"
	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/bulk"
	"github.com/bnema/nearby-cli/internal/config"
	"github.com/bnema/nearby-cli/internal/dispatch"
	"github.com/bnema/nearby-cli/internal/platform/logging"
	"github.com/bnema/nearby-cli/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
)

type app struct {
	cfg      config.Config
	logger   *slog.Logger
	logLevel *slog.LevelVar
	metrics  *prometheus.Registry

	accounts *application.AccountService
	registry *application.Registry
	// apiErr is set when the platform API is not configured. Local commands still work.
	apiErr error

	statusRenderer func([]application.AccountStatus, statusadapter.RenderOptions) (string, error)
	batchRenderer  func(string, application.BulkReport, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logLevel := &slog.LevelVar{}
	logLevel.Set(level)
	logger := logging.New(os.Stderr, logLevel, cfg.LogFormat)

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}
	proxyState, err := tomlrepo.NewProxyStateRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire proxy state repository: %w", err)
	}

	secretStore, err := newSecretStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dispatchMetrics, err := dispatch.NewMetrics(metrics)
	if err != nil {
		return nil, fmt.Errorf("wire dispatch metrics: %w", err)
	}
	bulkMetrics, err := bulk.NewMetrics(metrics)
	if err != nil {
		return nil, fmt.Errorf("wire bulk metrics: %w", err)
	}

	accounts := application.NewAccountService(repo, secretStore)
	deps := application.Dependencies{
		Sessions:        application.NewSessionStore(secretStore),
		ProxyState:      proxyState,
		Clock:           ports.SystemClock{},
		Logger:          logger,
		DispatchMetrics: dispatchMetrics,
		BulkMetrics:     bulkMetrics,
	}

	apiErr := cfg.API.Validate()
	if apiErr == nil {
		transport, err := httptransport.New(httptransport.Config{
			BaseURL:   cfg.API.BaseURL,
			UserAgent: cfg.API.UserAgent,
			Timeout:   cfg.API.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("wire transport: %w", err)
		}
		api := auth.DefaultAPI(cfg.API.BaseURL)
		api.UserAgent = cfg.API.UserAgent
		deps.Transport = transport
		deps.Auth = auth.PasswordFlowAdapter{
			API:            api,
			RequestTimeout: cfg.API.Timeout,
			Clock:          ports.SystemClock{},
		}
	}

	clientCfg := application.ClientConfig{
		Session:         cfg.Session,
		Pool:            cfg.Pool,
		Dispatch:        cfg.Dispatch,
		BulkConcurrency: cfg.Bulk.Concurrency,
		BulkDeadline:    cfg.Bulk.Deadline,
	}

	return &app{
		cfg:            cfg,
		logger:         logger,
		logLevel:       logLevel,
		metrics:        metrics,
		accounts:       accounts,
		registry:       application.NewRegistry(accounts, deps, clientCfg),
		apiErr:         apiErr,
		statusRenderer: statusadapter.Render,
		batchRenderer:  statusadapter.RenderBatch,
		now:            time.Now,
	}, nil
}

func newSecretStore(cfg config.Config) (ports.SecretStore, error) {
	switch cfg.SecretsBackend {
	case config.SecretsBackendFile:
		return filestore.NewStore(cfg.SecretsDir), nil
	case config.SecretsBackendPass:
		return passstore.NewStore(), nil
	default:
		store, err := chainstore.NewPassFirstWithFileFallback(cfg.SecretsDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// client returns the platform client for the selected account.
func (a *app) client(ctx context.Context, rawID string) (*application.Client, error) {
	if a.apiErr != nil {
		return nil, a.apiErr
	}
	id, err := selectAccountID(ctx, a.accounts, rawID)
	if err != nil {
		return nil, err
	}
	return a.registry.Client(ctx, id)
}

// close persists per-account state, such as proxy health, at the end of a command.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.registry.Close(ctx); err != nil {
		return fmt.Errorf("save account state: %w", err)
	}
	return nil
}
