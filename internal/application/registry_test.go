package application

import (
	"context"
	"testing"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuildsOneClientPerAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.accounts.AddAccount(ctx, AddAccountCommand{ID: "acc-0", Username: "sam", Password: "pw", Proxies: []string{"10.0.0.5:3128"}})
	require.NoError(t, err)

	deps := env.deps()
	deps.Accounts = nil
	registry := NewRegistry(env.accounts, deps, testClientConfig())

	first, err := registry.Client(ctx, "acc-1")
	require.NoError(t, err)
	again, err := registry.Client(ctx, "acc-1")
	require.NoError(t, err)
	assert.Same(t, first, again)

	clients, err := registry.Clients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, domain.AccountID("acc-0"), clients[0].Account().ID)
	assert.NotSame(t, clients[0].pool, clients[1].pool, "accounts never share a proxy pool")
	assert.NotSame(t, clients[0].sessions, clients[1].sessions)

	statuses, err := registry.Statuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].LoggedIn)
	assert.Equal(t, 1, statuses[0].Proxies.Total)

	_, err = registry.Client(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, registry.Close(ctx))
}
