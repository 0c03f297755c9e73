// Package store provides a generic in-memory implementation of
// dao.Service keyed by a caller-supplied selector.  Concrete stores embed
// it to avoid rewriting identical Save/Load/Delete/List logic per entity.
package store

import (
	"context"
	"sync"

	"github.com/cascata-io/cascata/service/dao"
)

// MemoryStore keeps entities of type *T mapped by a comparable key K
// extracted via the keySelector function.  It carries no business logic;
// higher-level services layer filtering and state transitions on top.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
}

// New creates a MemoryStore; keySelector extracts the entity key (usually
// the ID field) from a value.
func New[K comparable, T any](keySelector func(*T) K) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key; a missing record yields (nil, nil) so
// that callers can distinguish absence from storage failure.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List returns all records accepted by every supplied matcher.
func (s *MemoryStore[K, T]) List(_ context.Context, matchers ...dao.Matcher[T]) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
outer:
	for _, v := range s.records {
		for _, match := range matchers {
			if !match(v) {
				continue outer
			}
		}
		out = append(out, v)
	}
	return out, nil
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
