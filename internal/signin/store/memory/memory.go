package memory

import (
	"context"
	"slices"
	"sync"
)

// Store is an in-memory KVStore for tests and ephemeral kiosks.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailSave, when set, is returned from Save and SaveAll. Test-only hook.
	FailSave error
	// FailLoad, when set, is returned from Load. Test-only hook.
	FailLoad error
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailLoad != nil {
		return nil, false, s.FailLoad
	}
	v, ok := s.data[key]
	return slices.Clone(v), ok, nil
}

func (s *Store) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *Store) SaveAll(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	for k, v := range entries {
		s.data[k] = slices.Clone(v)
	}
	return nil
}

// Keys returns the stored keys, sorted. Test-only helper.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
