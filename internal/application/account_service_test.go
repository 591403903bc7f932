package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	tomlrepo "github.com/bnema/nearby-cli/internal/adapters/repo/toml"
	filestore "github.com/bnema/nearby-cli/internal/adapters/secrets/file"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports/mocks"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAddAccountStoresPasswordAndSavesAccount(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store)

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("acc-1")).Return(domain.Account{}, domain.ErrAccountNotFound)
	store.EXPECT().Put(mockAnyContext(), "nearby/accounts/acc-1/password", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{
		ID:          "acc-1",
		Name:        "main",
		Username:    "alex",
		PasswordRef: "nearby/accounts/acc-1/password",
		Proxies:     []string{"http://10.0.0.1:8080"},
	}).Return(nil)

	account, err := service.AddAccount(context.Background(), AddAccountCommand{
		ID:       "acc-1",
		Name:     " main ",
		Username: "alex",
		Password: "hunter2",
		Proxies:  []string{"10.0.0.1:8080", "http://10.0.0.1:8080"},
	})
	require.NoError(t, err)
	assert.Equal(t, "nearby/accounts/acc-1/password", account.PasswordRef)
}

func TestAddAccountRollsBackPasswordWhenSaveFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store)

	saveErr := errors.New("disk full")
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("acc-1")).Return(domain.Account{}, domain.ErrAccountNotFound)
	store.EXPECT().Put(mockAnyContext(), "nearby/accounts/acc-1/password", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), mock.Anything).Return(saveErr)
	store.EXPECT().Delete(mockAnyContext(), "nearby/accounts/acc-1/password").Return(nil)

	_, err := service.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1", Username: "alex", Password: "hunter2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, saveErr)
	assert.ErrorContains(t, err, "save account")
}

func TestAddAccountJoinsRollbackFailure(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store)

	saveErr := errors.New("disk full")
	deleteErr := errors.New("pass locked")
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("acc-1")).Return(domain.Account{}, domain.ErrAccountNotFound)
	store.EXPECT().Put(mockAnyContext(), mock.Anything, mock.Anything).Return(nil)
	repo.EXPECT().Save(mockAnyContext(), mock.Anything).Return(saveErr)
	store.EXPECT().Delete(mockAnyContext(), mock.Anything).Return(deleteErr)

	_, err := service.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1", Username: "alex", Password: "hunter2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, saveErr)
	assert.ErrorIs(t, err, deleteErr)
	assert.ErrorContains(t, err, "rollback stored password")
}

func TestAddAccountRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     AddAccountCommand
		wantErr string
	}{
		{name: "missing username", cmd: AddAccountCommand{ID: "acc-1"}, wantErr: "username is required"},
		{name: "bad proxy", cmd: AddAccountCommand{ID: "acc-1", Username: "alex", Proxies: []string{"ftp://x:1"}}, wantErr: "unsupported proxy scheme"},
		{name: "bad location", cmd: AddAccountCommand{ID: "acc-1", Username: "alex", Location: &domain.Location{Latitude: 120}}, wantErr: "validate location"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := mocks.NewMockAccountRepository(t)
			store := mocks.NewMockSecretStore(t)
			repo.EXPECT().GetByID(mockAnyContext(), tc.cmd.ID).Return(domain.Account{}, domain.ErrAccountNotFound)

			_, err := NewAccountService(repo, store).AddAccount(context.Background(), tc.cmd)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRemoveAccountDeletesSecrets(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store)

	account := domain.Account{
		ID:          "acc-1",
		Username:    "alex",
		PasswordRef: "nearby/accounts/acc-1/password",
		SessionRef:  "nearby/accounts/acc-1/session",
	}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("acc-1")).Return(account, nil)
	repo.EXPECT().Delete(mockAnyContext(), domain.AccountID("acc-1")).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "nearby/accounts/acc-1/password").Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "nearby/accounts/acc-1/session").Return(domain.ErrSecretNotFound)

	require.NoError(t, service.RemoveAccount(context.Background(), "acc-1"))
}

func TestRemoveAccountRestoresAccountWhenSecretDeleteFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store)

	deleteErr := errors.New("pass locked")
	account := domain.Account{ID: "acc-1", Username: "alex", PasswordRef: "nearby/accounts/acc-1/password"}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("acc-1")).Return(account, nil)
	repo.EXPECT().Delete(mockAnyContext(), domain.AccountID("acc-1")).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "nearby/accounts/acc-1/password").Return(deleteErr)
	repo.EXPECT().Save(mockAnyContext(), account).Return(nil)

	err := service.RemoveAccount(context.Background(), "acc-1")
	assert.ErrorIs(t, err, deleteErr)
	assert.ErrorContains(t, err, "delete account secret")
}

func TestCredentialsLoadsStoredPassword(t *testing.T) {
	service := newFileBackedAccountService(t)
	ctx := context.Background()

	_, err := service.AddAccount(ctx, AddAccountCommand{ID: "acc-1", Username: "alex", Password: "hunter2"})
	require.NoError(t, err)

	creds, err := service.Credentials(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{Username: "alex", Password: "hunter2"}, creds)
}

func TestCredentialsWithoutPassword(t *testing.T) {
	service := newFileBackedAccountService(t)
	ctx := context.Background()

	_, err := service.AddAccount(ctx, AddAccountCommand{ID: "acc-1", Username: "alex"})
	require.NoError(t, err)
	_, err = service.Credentials(ctx, "acc-1")
	assert.ErrorIs(t, err, ErrNoPassword)

	_, err = service.AddAccount(ctx, AddAccountCommand{ID: "acc-2", Username: "sam", ThirdPartyUserID: "g-42"})
	require.NoError(t, err)
	creds, err := service.Credentials(ctx, "acc-2")
	require.NoError(t, err)
	assert.Equal(t, "g-42", creds.ThirdPartyUserID)
}

func TestAddAccountUpdateKeepsExistingFields(t *testing.T) {
	service := newFileBackedAccountService(t)
	ctx := context.Background()

	_, err := service.AddAccount(ctx, AddAccountCommand{
		ID:       "acc-1",
		Username: "alex",
		Password: "hunter2",
		Location: &domain.Location{Latitude: 40.7, Longitude: -74},
	})
	require.NoError(t, err)

	updated, err := service.AddAccount(ctx, AddAccountCommand{ID: "acc-1", Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "alex", updated.Username)
	assert.Equal(t, "renamed", updated.Name)
	require.NotNil(t, updated.Location)
	assert.Equal(t, domain.PasswordSecretKey("acc-1"), updated.PasswordRef)
}

func TestSetProxiesAndLocationPersist(t *testing.T) {
	service := newFileBackedAccountService(t)
	ctx := context.Background()

	_, err := service.AddAccount(ctx, AddAccountCommand{ID: "acc-1", Username: "alex", Password: "pw"})
	require.NoError(t, err)

	proxies, err := service.SetProxies(ctx, "acc-1", []string{"socks5://10.0.0.9:1080", "10.0.0.1:8080"})
	require.NoError(t, err)
	assert.Equal(t, []string{"socks5://10.0.0.9:1080", "http://10.0.0.1:8080"}, proxies)

	require.NoError(t, service.SetLocation(ctx, "acc-1", domain.Location{Latitude: 48.85, Longitude: 2.35}))
	assert.Error(t, service.SetLocation(ctx, "acc-1", domain.Location{Longitude: 200}))

	account, err := service.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, proxies, account.Proxies)
	require.NotNil(t, account.Location)
	assert.InDelta(t, 48.85, account.Location.Latitude, 1e-9)

	_, err = service.SetProxies(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func newFileBackedAccountService(t *testing.T) *AccountService {
	t.Helper()

	dir := t.TempDir()
	cfg := viper.New()
	cfg.Set("accounts.path", filepath.Join(dir, "accounts.toml"))
	repo, err := tomlrepo.NewRepository(cfg)
	require.NoError(t, err)

	return NewAccountService(repo, filestore.NewStore(filepath.Join(dir, "secrets")))
}

func mockAnyContext() interface{} {
	return mock.Anything
}
