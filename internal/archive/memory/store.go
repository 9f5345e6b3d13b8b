// Package memory stores snapshots in-memory for development and
// tests.
package memory

import (
	"context"
	"sync"
)

// Store keeps snapshots in a map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory snapshot store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Save copies data into the map.
func (s *Store) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectName] = append([]byte(nil), data...)
	return nil
}

// Get returns the stored snapshot and whether it exists.
func (s *Store) Get(objectName string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[objectName]
	return data, ok
}

// Len reports how many snapshots are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
