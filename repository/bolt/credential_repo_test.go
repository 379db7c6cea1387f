package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/config"
	boltinfra "github.com/fastygo/storefront-guard/internal/infrastructure/bolt"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := boltinfra.Open(config.StorageConfig{
		CredentialsPath: filepath.Join(t.TempDir(), "state", "credentials.db"),
	}, Bucket)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func keysIn(t *testing.T, db *bbolt.DB) []string {
	t.Helper()
	var keys []string
	require.NoError(t, db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(Bucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	}))
	return keys
}

func TestCredentialRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(openTestDB(t))

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrCredentialsNotFound)

	activity := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	creds := &domain.Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         &domain.User{ID: "u1", Email: "a@example.com", Role: "admin", Permissions: []string{"*"}},
		LastActivity: activity,
	}
	require.NoError(t, repo.Save(ctx, creds))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	require.NotNil(t, loaded.User)
	assert.Equal(t, "u1", loaded.User.ID)
	assert.True(t, activity.Equal(loaded.LastActivity))
}

func TestCredentialRepository_SaveRejectsEmptyToken(t *testing.T) {
	repo := NewCredentialRepository(openTestDB(t))
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.Credentials{}), domain.ErrInvalidPayload)
	assert.ErrorIs(t, repo.Save(context.Background(), nil), domain.ErrInvalidPayload)
}

func TestCredentialRepository_Touch(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(openTestDB(t))

	assert.ErrorIs(t, repo.Touch(ctx, time.Now()), domain.ErrCredentialsNotFound)

	require.NoError(t, repo.Save(ctx, &domain.Credentials{AccessToken: "access"}))
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Touch(ctx, at))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(loaded.LastActivity))
}

func TestCredentialRepository_ClearRemovesEveryKey(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCredentialRepository(db)

	require.NoError(t, repo.Save(ctx, &domain.Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         &domain.User{ID: "u1"},
		LastActivity: time.Now(),
	}))
	assert.ElementsMatch(t, []string{"token", "refresh_token", "user", "last_activity"}, keysIn(t, db))

	require.NoError(t, repo.Clear(ctx))
	assert.Empty(t, keysIn(t, db))

	require.NoError(t, repo.Clear(ctx), "clearing an empty store is not an error")
	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrCredentialsNotFound)
}

func TestCredentialRepository_SaveDropsStaleOptionalKeys(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCredentialRepository(db)

	require.NoError(t, repo.Save(ctx, &domain.Credentials{AccessToken: "a", RefreshToken: "r", User: &domain.User{ID: "u1"}}))
	require.NoError(t, repo.Save(ctx, &domain.Credentials{AccessToken: "b"}))
	assert.Equal(t, []string{"token"}, keysIn(t, db))
}

func TestCredentialRepository_CancelledContext(t *testing.T) {
	repo := NewCredentialRepository(openTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Clear(ctx), context.Canceled)
	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
