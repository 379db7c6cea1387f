package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/pkg/token"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type memoryRepo struct {
	mu     sync.Mutex
	creds  *domain.Credentials
	clears int
	err    error
}

func (m *memoryRepo) Load(context.Context) (*domain.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, domain.ErrCredentialsNotFound
	}
	c := *m.creds
	return &c, nil
}

func (m *memoryRepo) Save(_ context.Context, creds *domain.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *creds
	m.creds = &c
	return nil
}

func (m *memoryRepo) Touch(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return domain.ErrCredentialsNotFound
	}
	m.creds.LastActivity = at
	return nil
}

func (m *memoryRepo) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clears++
	m.creds = nil
	return nil
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(exp)},
		Role:             "customer",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

func newUseCase(t *testing.T, repo *memoryRepo) *UseCase {
	return New(repo, func() time.Time { return now }, zaptest.NewLogger(t))
}

func TestLogin(t *testing.T) {
	repo := &memoryRepo{}
	uc := newUseCase(t, repo)

	creds, err := uc.Login(context.Background(), domain.TokenPair{
		AccessToken:  signed(t, now.Add(time.Hour)),
		RefreshToken: "refresh",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, creds.User)
	assert.Equal(t, "u1", creds.User.ID)
	assert.Equal(t, "customer", creds.User.Role)
	assert.Equal(t, now, creds.LastActivity)
	assert.True(t, uc.HasCredential(context.Background()))
}

func TestLogin_RejectsExpiredToken(t *testing.T) {
	repo := &memoryRepo{}
	uc := newUseCase(t, repo)

	_, err := uc.Login(context.Background(), domain.TokenPair{AccessToken: signed(t, now.Add(-time.Second))}, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Nil(t, repo.creds)
}

func TestApplyRefresh(t *testing.T) {
	repo := &memoryRepo{}
	uc := newUseCase(t, repo)
	ctx := context.Background()

	_, err := uc.Login(ctx, domain.TokenPair{AccessToken: signed(t, now.Add(time.Minute)), RefreshToken: "r1"},
		&domain.User{ID: "u1", Role: "admin"})
	require.NoError(t, err)

	fresh := signed(t, now.Add(time.Hour))
	creds, err := uc.ApplyRefresh(ctx, domain.TokenPair{AccessToken: fresh})
	require.NoError(t, err)
	assert.Equal(t, fresh, creds.AccessToken)
	assert.Equal(t, "r1", creds.RefreshToken)
	assert.Equal(t, "admin", creds.User.Role)

	_, err = uc.ApplyRefresh(ctx, domain.TokenPair{AccessToken: "garbage"})
	assert.ErrorIs(t, err, domain.ErrRefreshFailed)
}

func TestTouch(t *testing.T) {
	repo := &memoryRepo{}
	uc := newUseCase(t, repo)

	require.NoError(t, uc.Touch(context.Background()), "touch without credentials is a no-op")

	repo.creds = &domain.Credentials{AccessToken: "a"}
	require.NoError(t, uc.Touch(context.Background()))
	assert.Equal(t, now, repo.creds.LastActivity)
}

func TestClear_Idempotent(t *testing.T) {
	repo := &memoryRepo{creds: &domain.Credentials{AccessToken: "a"}}
	uc := newUseCase(t, repo)

	require.NoError(t, uc.Clear(context.Background()))
	require.NoError(t, uc.Clear(context.Background()))
	assert.Equal(t, 2, repo.clears)
	assert.False(t, uc.HasCredential(context.Background()))

	repo.err = errors.New("disk full")
	assert.Error(t, uc.Clear(context.Background()))
}
