package chain

import (
	"context"
	"errors"
	"testing"

	passstore "github.com/bnema/nearby-cli/internal/adapters/secrets/pass"
	"github.com/bnema/nearby-cli/internal/domain"
	portmocks "github.com/bnema/nearby-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const key = "nearby/accounts/acc-1/session"

func newTestStore(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	return NewStore(primary, fallback), primary, fallback
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, key).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryMisses(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, key).Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, key).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetMissingEverywhereIsSecretNotFound(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, key).Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, key).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "primary backend get failed")
}

func TestStoreUnavailablePrimaryIsSkippedAfterFirstFailure(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Put(mock.Anything, key, "v1").Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Put(mock.Anything, key, "v1").Return(nil).Once()
	fallback.EXPECT().Get(mock.Anything, key).Return("v1", nil).Once()

	require.NoError(t, store.Put(context.Background(), key, "v1"))

	value, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Put(mock.Anything, key, "secret").Return(errors.New("gpg failed")).Once()
	fallback.EXPECT().Put(mock.Anything, key, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), key, "secret"))
}

func TestStorePutReportsBothFailures(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Put(mock.Anything, key, "secret").Return(errors.New("gpg failed")).Once()
	fallback.EXPECT().Put(mock.Anything, key, "secret").Return(errors.New("disk full")).Once()

	err := store.Put(context.Background(), key, "secret")
	require.Error(t, err)
	assert.ErrorContains(t, err, "gpg failed")
	assert.ErrorContains(t, err, "disk full")
}

func TestStoreDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Delete(mock.Anything, key).Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, key).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), key))
}

func TestStoreDeleteToleratesUnavailablePrimary(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Delete(mock.Anything, key).Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Delete(mock.Anything, key).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), key))
}

func TestStoreSkipsFallbackWhenContextCanceled(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, key).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewStoreCheckedRejectsNil(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, portmocks.NewMockSecretStore(t))
	assert.ErrorIs(t, err, errNilPrimaryStore)
	_, err = NewStoreChecked(portmocks.NewMockSecretStore(t), nil)
	assert.ErrorIs(t, err, errNilFallbackStore)
}
