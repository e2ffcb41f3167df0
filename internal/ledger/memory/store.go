// Package memory is the slice-backed ledger store. Its contents live only as
// long as the process.
package memory

import (
	"context"
	"sync"

	"budgeting/internal/core"
	"budgeting/internal/ledger"
)

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

func New() *Store {
	return &Store{items: make([]core.Transaction, 0)}
}

// Append stores t at the end and returns its position.
func (s *Store) Append(_ context.Context, t core.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, t)
	return len(s.items) - 1, nil
}

func (s *Store) Replace(_ context.Context, t core.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(t.ID)
	if i < 0 {
		return 0, ledger.NotFound(t.ID)
	}
	s.items[i] = t
	return i, nil
}

func (s *Store) Remove(_ context.Context, id core.ID) (int, core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return 0, core.Transaction{}, ledger.NotFound(id)
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return i, removed, nil
}

// List returns a copy so callers can't modify internal state.
func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) indexOf(id core.ID) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

var _ ledger.Store = (*Store)(nil)
