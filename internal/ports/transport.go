package ports

import (
	"context"

	"github.com/bnema/nearby-cli/internal/domain"
)

// Transport executes one request through the given egress endpoint. It never classifies results.
type Transport interface {
	Do(ctx context.Context, endpoint domain.ProxyEndpoint, token domain.SessionToken, req domain.Request) domain.RawResult
}
