package repository

import (
	"context"
	"time"

	"github.com/fastygo/storefront-guard/domain"
)

// CredentialRepository persists the signed-in user's credentials between runs.
type CredentialRepository interface {
	// Load returns domain.ErrCredentialsNotFound when nothing is stored.
	Load(ctx context.Context) (*domain.Credentials, error)
	Save(ctx context.Context, creds *domain.Credentials) error
	Touch(ctx context.Context, at time.Time) error
	// Clear removes every stored key in one step. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
