// Package auth owns the stored credentials of the signed-in user.
package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/pkg/token"
	"github.com/fastygo/storefront-guard/repository"
)

type UseCase struct {
	creds  repository.CredentialRepository
	now    func() time.Time
	logger *zap.Logger
}

func New(creds repository.CredentialRepository, now func() time.Time, logger *zap.Logger) *UseCase {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		creds:  creds,
		now:    now,
		logger: logger.Named("auth"),
	}
}

// Login stores a fresh token pair. The user is taken from the token claims when not given.
func (uc *UseCase) Login(ctx context.Context, pair domain.TokenPair, user *domain.User) (*domain.Credentials, error) {
	now := uc.now()
	if !token.IsValid(pair.AccessToken, now) {
		return nil, domain.ErrUnauthorized
	}
	if user == nil {
		user = token.UserFromClaims(token.Decode(pair.AccessToken))
	}
	creds := &domain.Credentials{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
		LastActivity: now,
	}
	if err := uc.creds.Save(ctx, creds); err != nil {
		return nil, err
	}
	uc.logger.Info("credentials stored", zap.String("user_id", userID(user)))
	return creds, nil
}

// Current returns the stored credentials or domain.ErrCredentialsNotFound.
func (uc *UseCase) Current(ctx context.Context) (*domain.Credentials, error) {
	return uc.creds.Load(ctx)
}

// HasCredential reports whether a usable access token is stored.
func (uc *UseCase) HasCredential(ctx context.Context) bool {
	creds, err := uc.creds.Load(ctx)
	return err == nil && creds.AccessToken != ""
}

// ApplyRefresh replaces the stored token pair and keeps the user.
// An empty refresh token in the pair keeps the previous one.
func (uc *UseCase) ApplyRefresh(ctx context.Context, pair domain.TokenPair) (*domain.Credentials, error) {
	if !token.IsValid(pair.AccessToken, uc.now()) {
		return nil, domain.ErrRefreshFailed
	}
	creds, err := uc.creds.Load(ctx)
	if err != nil {
		return nil, err
	}
	creds.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		creds.RefreshToken = pair.RefreshToken
	}
	if claimed := token.UserFromClaims(token.Decode(pair.AccessToken)); claimed != nil && creds.User == nil {
		creds.User = claimed
	}
	if err := uc.creds.Save(ctx, creds); err != nil {
		return nil, err
	}
	uc.logger.Debug("access token refreshed", zap.String("user_id", userID(creds.User)))
	return creds, nil
}

// Touch records user activity. Without stored credentials it is a no-op.
func (uc *UseCase) Touch(ctx context.Context) error {
	err := uc.creds.Touch(ctx, uc.now())
	if errors.Is(err, domain.ErrCredentialsNotFound) {
		return nil
	}
	return err
}

// Clear removes every stored credential. Clearing twice is not an error.
func (uc *UseCase) Clear(ctx context.Context) error {
	if err := uc.creds.Clear(ctx); err != nil {
		uc.logger.Error("failed to clear credentials", zap.Error(err))
		return err
	}
	uc.logger.Info("credentials cleared")
	return nil
}

func userID(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
