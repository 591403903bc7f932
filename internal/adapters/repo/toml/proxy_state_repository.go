package toml

import (
	"context"
	"sync"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"github.com/spf13/viper"
)

const (
	proxyStatePathKey  = "proxy_state.path"
	proxyStateFileName = "proxy_state.toml"
)

// ProxyStateRepository persists endpoint health per account so cooldowns and bans outlive a run.
type ProxyStateRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.ProxyStateRepository = (*ProxyStateRepository)(nil)

func NewProxyStateRepository(cfg *viper.Viper) (*ProxyStateRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path, err := resolvePath(cfg.GetString(proxyStatePathKey), proxyStateFileName)
	if err != nil {
		return nil, err
	}

	return &ProxyStateRepository{path: path, mu: lockForPath(path)}, nil
}

// Load returns nil without error when nothing was saved for the account.
func (r *ProxyStateRepository) Load(ctx context.Context, accountID domain.AccountID) ([]domain.ProxyEndpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	for _, entry := range file.Accounts {
		if entry.AccountID != string(accountID) {
			continue
		}
		endpoints := make([]domain.ProxyEndpoint, 0, len(entry.Endpoints))
		for _, ep := range entry.Endpoints {
			endpoints = append(endpoints, fromEndpointSchema(ep))
		}
		return endpoints, nil
	}

	return nil, nil
}

func (r *ProxyStateRepository) Save(ctx context.Context, accountID domain.AccountID, endpoints []domain.ProxyEndpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := accountProxySchema{AccountID: string(accountID), Endpoints: make([]endpointSchema, 0, len(endpoints))}
	for _, ep := range endpoints {
		if ep.Direct() {
			continue
		}
		encoded.Endpoints = append(encoded.Endpoints, toEndpointSchema(ep))
	}

	updated := false
	for i := range file.Accounts {
		if file.Accounts[i].AccountID == encoded.AccountID {
			file.Accounts[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Accounts = append(file.Accounts, encoded)
	}

	return writeTOMLFile(r.path, file)
}

func (r *ProxyStateRepository) readSchema() (proxyStateFileSchema, error) {
	var file proxyStateFileSchema
	if err := readTOMLFile(r.path, &file); err != nil {
		return proxyStateFileSchema{}, err
	}
	if err := file.validateVersion(); err != nil {
		return proxyStateFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toEndpointSchema(ep domain.ProxyEndpoint) endpointSchema {
	return endpointSchema{
		Address:             ep.Address,
		Health:              ep.Health,
		ConsecutiveFailures: ep.ConsecutiveFailures,
		CooldownUntil:       formatTime(ep.CooldownUntil),
		CooldownCycles:      ep.CooldownCycles,
		LastUsed:            formatTime(ep.LastUsed),
		Disabled:            ep.Disabled,
		Successes:           ep.Successes,
		Failures:            ep.Failures,
	}
}

func fromEndpointSchema(schema endpointSchema) domain.ProxyEndpoint {
	return domain.ProxyEndpoint{
		Address:             schema.Address,
		Health:              schema.Health,
		ConsecutiveFailures: schema.ConsecutiveFailures,
		CooldownUntil:       parseTime(schema.CooldownUntil),
		CooldownCycles:      schema.CooldownCycles,
		LastUsed:            parseTime(schema.LastUsed),
		Disabled:            schema.Disabled,
		Successes:           schema.Successes,
		Failures:            schema.Failures,
	}
}
