// Package memory keeps archived documents in memory for tests.
package memory

import (
	"context"
	"sync"
)

// Store holds document bodies keyed by archive key.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory archive.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put copies the document into the map and returns a memory:// URI.
func (s *Store) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// Get returns the stored body, if any.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	return data, ok
}

// Len reports how many documents are archived.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
