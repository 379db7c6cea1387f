package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/storefront-guard/internal/config"
)

// Open initializes the BoltDB file and ensures the buckets exist.
func Open(cfg config.StorageConfig, buckets ...string) (*bbolt.DB, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("bolt: empty credentials path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CredentialsPath), 0o700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(cfg.CredentialsPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Ping opens a read transaction to confirm the file is usable.
func Ping(db *bbolt.DB) error {
	if db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	return db.View(func(*bbolt.Tx) error { return nil })
}
