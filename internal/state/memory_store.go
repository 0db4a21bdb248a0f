package state

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps blobs in process memory for single mode and tests.
// Params: mutex-guarded key/value map.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
// Params: none.
// Returns: initialized store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get reads one blob by key.
// Params: persistence key.
// Returns: copy of the stored value or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put writes one blob unconditionally.
// Params: persistence key and serialized value.
// Returns: nil (in-memory update).
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = stored
	return nil
}

// Delete removes one key.
// Params: persistence key.
// Returns: nil (in-memory delete).
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys lists stored keys in sorted order.
// Params: none.
// Returns: deterministic key list.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
