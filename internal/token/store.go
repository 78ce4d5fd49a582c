package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// AccessTokenKey is the durable storage key of the bearer token.
const AccessTokenKey = "access_token"

// Store is the single holder of the bearer credential. The in-memory copy is
// sealed in a memguard enclave and mirrored to durable storage on every
// change.
type Store struct {
	mu      sync.RWMutex
	token   *memguard.Enclave
	backend model.KeyValueStore
	logger  *logger.Logger
}

var _ model.TokenStore = (*Store)(nil)

// NewStore seeds the in-memory token from durable storage. It is the only
// read of durable storage for the lifetime of the Store.
func NewStore(backend model.KeyValueStore, logger *logger.Logger) (*Store, error) {
	s := &Store{backend: backend, logger: logger}

	data, err := backend.Get(AccessTokenKey)
	if errors.Is(err, model.ErrStorageKeyNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}

	// NewEnclave wipes data; a zero-length value yields no enclave.
	s.token = memguard.NewEnclave(data)
	logger.Debug("Token store: restored access token from durable storage")

	return s, nil
}

// AccessToken returns the current token, if any.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return "", false
	}

	buf, err := s.token.Open()
	if err != nil {
		s.logger.Error("Token store: failed to open token enclave", "error", err.Error())
		return "", false
	}
	defer buf.Destroy()

	return string(buf.Bytes()), true
}

// Set replaces the token. An empty token clears the store. The token shape
// is not validated.
func (s *Store) Set(token string) error {
	if token == "" {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = memguard.NewEnclave([]byte(token))

	if err := s.backend.Put(AccessTokenKey, []byte(token)); err != nil {
		s.logger.Error("Token store: failed to persist access token", "error", err.Error())
		return fmt.Errorf("failed to persist access token: %w", err)
	}

	return nil
}

// Clear removes the token from memory and durable storage. Clearing an
// empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil

	if err := s.backend.Delete(AccessTokenKey); err != nil {
		s.logger.Error("Token store: failed to remove access token", "error", err.Error())
		return fmt.Errorf("failed to remove access token: %w", err)
	}

	return nil
}
