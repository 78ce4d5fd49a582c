// Package memory provides a thread-safe in-memory model.KeyValueStore.
package memory

import (
	"fmt"
	"sync"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// Store keeps values in a map. Suitable for tests and ephemeral sessions.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ model.KeyValueStore = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, model.ErrStorageKeyNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}
