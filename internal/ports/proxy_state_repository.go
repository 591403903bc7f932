package ports

import (
	"context"

	"github.com/bnema/nearby-cli/internal/domain"
)

// ProxyStateRepository keeps endpoint health between runs so cooldowns survive restarts.
type ProxyStateRepository interface {
	Load(ctx context.Context, accountID domain.AccountID) ([]domain.ProxyEndpoint, error)
	Save(ctx context.Context, accountID domain.AccountID, endpoints []domain.ProxyEndpoint) error
}
