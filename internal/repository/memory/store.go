// Package memory provides a generic thread-safe in-memory key-value store
// used by repository adapters.
package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store when the requested key does not exist.
var ErrNotFound = errors.New("not found")

// Store is a generic thread-safe in-memory key-value store.
type Store[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]V
	keyFunc func(V) K
}

// New creates a Store with a key extractor function.
func New[K comparable, V any](keyFunc func(V) K) *Store[K, V] {
	return &Store[K, V]{
		data:    make(map[K]V),
		keyFunc: keyFunc,
	}
}

// Set inserts or replaces the value, using keyFunc to derive the key.
func (s *Store[K, V]) Set(_ context.Context, v V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.keyFunc(v)] = v
	return nil
}

// Replace overwrites an existing value. Returns ErrNotFound if absent.
func (s *Store[K, V]) Replace(_ context.Context, v V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keyFunc(v)
	if _, ok := s.data[k]; !ok {
		return ErrNotFound
	}
	s.data[k] = v
	return nil
}

// Get returns the value for key, or ErrNotFound if absent.
func (s *Store[K, V]) Get(_ context.Context, key K) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Delete removes the value for key.  Returns ErrNotFound if absent.
func (s *Store[K, V]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// All returns all stored values in arbitrary order.
func (s *Store[K, V]) All(_ context.Context) ([]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.data))
	for _, v := range s.data {
		out = append(out, v)
	}
	return out, nil
}
