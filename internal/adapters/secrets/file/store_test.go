package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionKey = "nearby/accounts/acc-1/session"

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	testCases := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "secret key is empty"},
		{name: "whitespace", key: "   ", wantErr: "secret key is empty"},
		{name: "absolute", key: "/etc/passwd", wantErr: "invalid secret key"},
		{name: "traversal", key: "../escape", wantErr: "invalid secret key"},
		{name: "nested traversal", key: "nearby/../../escape", wantErr: "invalid secret key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Put(context.Background(), tc.key, "value")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Put(context.Background(), sessionKey, `{"token":"tok-1"}`))
	require.NoError(t, store.Put(context.Background(), sessionKey, `{"token":"tok-2"}`))

	got, err := store.Get(context.Background(), sessionKey)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"tok-2"}`, got)

	info, err := os.Stat(filepath.Join(root, sessionKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMode), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(filepath.Join(root, sessionKey)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestStoreGetMissingIsSecretNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewStore(t.TempDir()).Get(context.Background(), sessionKey)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreDeleteIsIdempotentWhenSecretMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), sessionKey, "v"))

	require.NoError(t, store.Delete(context.Background(), sessionKey))
	require.NoError(t, store.Delete(context.Background(), sessionKey))

	_, err := store.Get(context.Background(), sessionKey)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewStore(t.TempDir()).Put(ctx, sessionKey, "v"), context.Canceled)
}
