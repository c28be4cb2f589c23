package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Bundles are copied on the way in and
// out so callers cannot mutate stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Bundle
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Bundle)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, ok := s.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	bundle.Cookies = append([]Cookie(nil), bundle.Cookies...)
	return &bundle, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, bundle *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *bundle
	stored.Cookies = append([]Cookie(nil), bundle.Cookies...)
	s.sessions[key] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
