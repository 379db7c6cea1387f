package repository

import (
	"context"
	"time"
)

// StatusRepository holds operator-controlled flags shared across clients.
type StatusRepository interface {
	Maintenance(ctx context.Context) (bool, error)
	SetMaintenance(ctx context.Context, enabled bool) error
	// LockedUntil returns the zero time when the user is not locked out.
	LockedUntil(ctx context.Context, userID string) (time.Time, error)
	Lock(ctx context.Context, userID string, until time.Time) error
	Unlock(ctx context.Context, userID string) error
}
