package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/repository"
)

const (
	maintenanceKey = "guard:maintenance"
	lockoutPrefix  = "guard:lockout:"
)

type statusRepository struct {
	client *redislib.Client
	now    func() time.Time
}

// NewStatusRepository creates a Redis-backed maintenance/lockout flag store.
func NewStatusRepository(client *redislib.Client, now func() time.Time) repository.StatusRepository {
	if now == nil {
		now = time.Now
	}
	return &statusRepository{client: client, now: now}
}

func (r *statusRepository) Maintenance(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, maintenanceKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *statusRepository) SetMaintenance(ctx context.Context, enabled bool) error {
	if enabled {
		return r.client.Set(ctx, maintenanceKey, r.now().UTC().Format(time.RFC3339), 0).Err()
	}
	return r.client.Del(ctx, maintenanceKey).Err()
}

func (r *statusRepository) LockedUntil(ctx context.Context, userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, nil
	}
	raw, err := r.client.Get(ctx, r.lockoutKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	until, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode lockout for %s: %w", userID, err)
	}
	if !until.After(r.now()) {
		return time.Time{}, nil
	}
	return until, nil
}

// Lock stores the lock end with a TTL so the key disappears when it lapses.
func (r *statusRepository) Lock(ctx context.Context, userID string, until time.Time) error {
	if userID == "" {
		return domain.ErrInvalidPayload
	}
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return r.Unlock(ctx, userID)
	}
	return r.client.Set(ctx, r.lockoutKey(userID), until.UTC().Format(time.RFC3339), ttl).Err()
}

func (r *statusRepository) Unlock(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.lockoutKey(userID)).Err()
}

func (r *statusRepository) lockoutKey(userID string) string {
	return fmt.Sprintf("%s%s", lockoutPrefix, userID)
}
