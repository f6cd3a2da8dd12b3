package memory

import (
	"context"
	"fmt"
	"sync"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"
)

// Store is an in-process ledger used for local development and tests.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

var _ ports.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ReadAll renders every stored expense in the canonical column order.
func (s *Store) ReadAll(_ context.Context) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := core.Table{Headers: append([]string(nil), core.Headers...)}
	for _, e := range s.items {
		t.Rows = append(t.Rows, e.Row())
	}
	return t, nil
}

// Expenses returns a copy of the stored expenses.
func (s *Store) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...)
}
