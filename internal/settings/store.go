package settings

import (
	"context"
	"sync"
)

// GlobalScope is the override scope used by the current catalog. The store
// is keyed by (scope, key) so per-tenant overrides stay possible without a
// schema change.
const GlobalScope = "global"

// Store persists setting overrides: at most one value per (scope, key).
// Deleting an override reverts resolution to the environment layer.
type Store interface {
	Get(ctx context.Context, scope, key string) (value string, ok bool, err error)
	All(ctx context.Context, scope string) (map[string]string, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
}

// MemoryStore is the non-persistent Store used for single-node deployments
// and tests. A single mutex makes each key's read-then-write atomic with
// respect to other writers.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scopes[scope][key]
	return v, ok, nil
}

func (s *MemoryStore) All(_ context.Context, scope string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.scopes[scope]))
	for k, v := range s.scopes[scope] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scopes[scope]
	if !ok {
		m = make(map[string]string)
		s.scopes[scope] = m
	}
	m[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes[scope], key)
	return nil
}
