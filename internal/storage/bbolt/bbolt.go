// Package bbolt provides the BBolt-backed durable store of the client.
package bbolt

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

var stateBucket = []byte("provalab")

// Store implements model.KeyValueStore backed by a single BBolt bucket.
type Store struct {
	db *bbolt.DB
}

var _ model.KeyValueStore = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create state bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens (or creates) a BBolt database at path. The parent
// directory is created with owner-only permissions.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(stateBucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, model.ErrStorageKeyNotFound)
		}
		// bbolt memory is only valid inside the transaction.
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), value)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stateBucket).Delete([]byte(key))
	})
}
