package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
)

var _ ports.StateStore = (*Store)(nil)

// Store implements ports.StateStore in memory.
// Safe for concurrent use. It backs anonymous runners and tests.
type Store struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]string),
	}
}

// NewStoreFrom creates an in-memory store holding a copy of values.
func NewStoreFrom(values map[string]string) *Store {
	s := NewStore()
	for k, v := range values {
		s.data[k] = v
	}
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, domain.NewStoreError("get", key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok, nil
}

// CompareAndSet stores value if the current value matches expected.
func (s *Store) CompareAndSet(ctx context.Context, key, expected, value string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStoreError("set", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.data[key]
	if !ports.Matches(current, found, expected) {
		return &domain.ConcurrencyError{Key: key, Expected: expected, Actual: current}
	}
	s.data[key] = value
	return nil
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
