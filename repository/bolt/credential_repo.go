// Package bolt stores credentials in a local BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/repository"
)

// Bucket holds every credential key.
const Bucket = "credentials"

const (
	keyToken        = "token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
	keyLastActivity = "last_activity"
)

var allKeys = [][]byte{
	[]byte(keyToken),
	[]byte(keyRefreshToken),
	[]byte(keyUser),
	[]byte(keyLastActivity),
}

type credentialRepository struct {
	db     *bbolt.DB
	bucket []byte
}

// NewCredentialRepository creates a BoltDB-backed credential repository.
// The bucket must already exist (see infrastructure/bolt.Open).
func NewCredentialRepository(db *bbolt.DB) repository.CredentialRepository {
	return &credentialRepository{db: db, bucket: []byte(Bucket)}
}

func (r *credentialRepository) Load(ctx context.Context) (*domain.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var creds domain.Credentials
	found := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.bucketOf(tx)
		if err != nil {
			return err
		}
		token := b.Get([]byte(keyToken))
		if token == nil {
			return nil
		}
		found = true
		creds.AccessToken = string(token)
		creds.RefreshToken = string(b.Get([]byte(keyRefreshToken)))

		if raw := b.Get([]byte(keyUser)); raw != nil {
			var user domain.User
			if err := json.Unmarshal(raw, &user); err != nil {
				return fmt.Errorf("decode stored user: %w", err)
			}
			creds.User = &user
		}
		if raw := b.Get([]byte(keyLastActivity)); raw != nil {
			at, err := time.Parse(time.RFC3339Nano, string(raw))
			if err != nil {
				return fmt.Errorf("decode last activity: %w", err)
			}
			creds.LastActivity = at
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrCredentialsNotFound
	}
	return &creds, nil
}

func (r *credentialRepository) Save(ctx context.Context, creds *domain.Credentials) error {
	if creds == nil || creds.AccessToken == "" {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var user []byte
	if creds.User != nil {
		payload, err := json.Marshal(creds.User)
		if err != nil {
			return err
		}
		user = payload
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.bucketOf(tx)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(keyToken), []byte(creds.AccessToken)); err != nil {
			return err
		}
		if err := putOrDelete(b, keyRefreshToken, []byte(creds.RefreshToken)); err != nil {
			return err
		}
		if err := putOrDelete(b, keyUser, user); err != nil {
			return err
		}
		if creds.LastActivity.IsZero() {
			return b.Delete([]byte(keyLastActivity))
		}
		return b.Put([]byte(keyLastActivity), []byte(creds.LastActivity.UTC().Format(time.RFC3339Nano)))
	})
}

func (r *credentialRepository) Touch(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.bucketOf(tx)
		if err != nil {
			return err
		}
		if b.Get([]byte(keyToken)) == nil {
			return domain.ErrCredentialsNotFound
		}
		return b.Put([]byte(keyLastActivity), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

// Clear deletes all four keys in a single transaction.
func (r *credentialRepository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.bucketOf(tx)
		if err != nil {
			return err
		}
		for _, key := range allKeys {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *credentialRepository) bucketOf(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(r.bucket)
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", r.bucket)
	}
	return b, nil
}

func putOrDelete(b *bbolt.Bucket, key string, value []byte) error {
	if len(value) == 0 {
		return b.Delete([]byte(key))
	}
	return b.Put([]byte(key), value)
}
