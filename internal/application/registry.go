package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/nearby-cli/internal/domain"
)

// Registry builds one client per account on first use. Clients share adapters and metrics but never sessions or pools.
type Registry struct {
	accounts *AccountService
	deps     Dependencies
	cfg      ClientConfig

	mu      sync.Mutex
	clients map[domain.AccountID]*Client
}

func NewRegistry(accounts *AccountService, deps Dependencies, cfg ClientConfig) *Registry {
	deps.Accounts = accounts
	return &Registry{
		accounts: accounts,
		deps:     deps,
		cfg:      cfg,
		clients:  make(map[domain.AccountID]*Client),
	}
}

func (r *Registry) Accounts() *AccountService {
	return r.accounts
}

func (r *Registry) Client(ctx context.Context, id domain.AccountID) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[id]; ok {
		return client, nil
	}

	account, err := r.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ctx, account, r.deps, r.cfg)
	if err != nil {
		return nil, err
	}
	r.clients[id] = client
	return client, nil
}

// Clients returns a client for every registered account, sorted by account id.
func (r *Registry) Clients(ctx context.Context) ([]*Client, error) {
	accounts, err := r.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	clients := make([]*Client, 0, len(accounts))
	for _, account := range accounts {
		client, err := r.Client(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("open client for %s: %w", account.ID, err)
		}
		clients = append(clients, client)
	}
	return clients, nil
}

func (r *Registry) Statuses(ctx context.Context) ([]AccountStatus, error) {
	clients, err := r.Clients(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]AccountStatus, 0, len(clients))
	for _, client := range clients {
		statuses = append(statuses, client.Status())
	}
	return statuses, nil
}

// Close persists the state of every opened client.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, client := range r.clients {
		if err := client.Close(ctx); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
