// Package state provides the durable key/value storage backing the session
// store. It is the client-side stand-in for browser storage: small string
// values, last write wins, and callers treat every failure as "value absent".
package state

import "sync"

// Store is the key/value contract the session layer persists through.
type Store interface {
	// Get returns the stored value and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores the value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes the value under key. Deleting an absent key is not an error.
	Delete(key string) error
	// Clear removes every stored value.
	Clear() error
}

// MemoryStore is an in-process Store used by tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()
	return nil
}
