package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/session"
)

var _ session.Store = (*Store)(nil)

// Store is an in-memory implementation of session.Store. Used in tests and
// in processes that do not need the session to survive a restart.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

func (s *Store) SetMany(_ context.Context, pairs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range pairs {
		s.values[key] = value
	}
	return nil
}

func (s *Store) RemoveMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}
