// Package memory is an in-process ports.Store used by tests and the memory
// backend. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"foretrack/internal/core"
	"foretrack/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type Store struct {
	mu         sync.RWMutex
	txs        map[string]core.Transaction // key: kind/id
	budgets    map[string]core.Budget
	categories map[string]core.Category
	settings   map[string]core.Settings
	revisions  map[string]int64
	snapshots  map[string]core.InsightSnapshot // key: user/scope
	recurring  map[string]core.RecurringTransaction
}

func New() *Store {
	return &Store{
		txs:        make(map[string]core.Transaction),
		budgets:    make(map[string]core.Budget),
		categories: make(map[string]core.Category),
		settings:   make(map[string]core.Settings),
		revisions:  make(map[string]int64),
		snapshots:  make(map[string]core.InsightSnapshot),
		recurring:  make(map[string]core.RecurringTransaction),
	}
}

func txKey(kind core.Kind, id string) string { return string(kind) + "/" + id }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := txKey(tx.Kind, tx.ID)
	if _, ok := s.txs[k]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrConflict)
	}
	s.txs[k] = tx
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := txKey(tx.Kind, tx.ID)
	old, ok := s.txs[k]
	if !ok || old.UserID != tx.UserID {
		return core.ErrNotFound
	}
	tx.CreatedAt = old.CreatedAt
	s.txs[k] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID string, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := txKey(kind, id)
	if old, ok := s.txs[k]; !ok || old.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.txs, k)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID string, kind core.Kind, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[txKey(kind, id)]
	if !ok || tx.UserID != userID {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, from, to core.Date) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID != userID {
			continue
		}
		if !from.IsZero() && tx.Date.Before(from.Time) {
			continue
		}
		if !to.IsZero() && tx.Date.After(to.Time) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// budgetClash reports an active budget other than b with the same category
// and period. Caller holds the lock.
func (s *Store) budgetClash(b core.Budget) bool {
	if !b.Active {
		return false
	}
	for _, o := range s.budgets {
		if o.ID != b.ID && o.UserID == b.UserID && o.Active &&
			o.Period == b.Period && strings.EqualFold(o.Category, b.Category) {
			return true
		}
	}
	return false
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; ok || s.budgetClash(b) {
		return fmt.Errorf("budget %s/%s: %w", b.Category, b.Period, core.ErrConflict)
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.budgets[b.ID]
	if !ok || old.UserID != b.UserID {
		return core.ErrNotFound
	}
	if s.budgetClash(b) {
		return fmt.Errorf("budget %s/%s: %w", b.Category, b.Period, core.ErrConflict)
	}
	b.CreatedAt = old.CreatedAt
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.budgets[id]; !ok || old.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, userID string, activeOnly bool) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID && (!activeOnly || b.Active) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) categoryClash(c core.Category) bool {
	for _, o := range s.categories {
		if o.ID != c.ID && o.UserID == c.UserID && strings.EqualFold(o.Name, c.Name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok || s.categoryClash(c) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok || old.UserID != c.UserID {
		return core.ErrNotFound
	}
	if s.categoryClash(c) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	c.CreatedAt = old.CreatedAt
	s.categories[c.ID] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.categories[id]; !ok || old.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) GetSettings(_ context.Context, userID string) (core.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[userID]
	if !ok {
		return core.Settings{}, core.ErrNotFound
	}
	return st, nil
}

func (s *Store) PutSettings(_ context.Context, st core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.UserID] = st
	return nil
}

func (s *Store) ListSummaryRecipients(context.Context) ([]core.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Settings
	for _, st := range s.settings {
		if st.WeeklySummary && st.Email != "" {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) BumpRevision(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[userID]++
	return s.revisions[userID], nil
}

func (s *Store) Revision(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revisions[userID], nil
}

func (s *Store) LoadSnapshot(_ context.Context, userID, scope string) (core.InsightSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[userID+"/"+scope]
	if !ok {
		return core.InsightSnapshot{}, core.ErrNotFound
	}
	snap.Payload = append([]byte(nil), snap.Payload...)
	return snap, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.InsightSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := snap.UserID + "/" + snap.Scope
	if old, ok := s.snapshots[k]; ok && old.Revision > snap.Revision {
		return false, nil
	}
	snap.Payload = append([]byte(nil), snap.Payload...)
	s.snapshots[k] = snap
	return true, nil
}

func (s *Store) CreateRecurring(_ context.Context, r core.RecurringTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recurring[r.ID]; ok {
		return fmt.Errorf("recurring %s: %w", r.ID, core.ErrConflict)
	}
	s.recurring[r.ID] = r
	return nil
}

func (s *Store) UpdateRecurring(_ context.Context, r core.RecurringTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.recurring[r.ID]
	if !ok || old.UserID != r.UserID {
		return core.ErrNotFound
	}
	r.CreatedAt = old.CreatedAt
	s.recurring[r.ID] = r
	return nil
}

func (s *Store) DeleteRecurring(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.recurring[id]; !ok || old.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.recurring, id)
	return nil
}

func (s *Store) GetRecurring(_ context.Context, userID, id string) (core.RecurringTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recurring[id]
	if !ok || r.UserID != userID {
		return core.RecurringTransaction{}, core.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListRecurring(_ context.Context, userID string) ([]core.RecurringTransaction, error) {
	return s.listRecurring(func(r core.RecurringTransaction) bool { return r.UserID == userID }), nil
}

func (s *Store) ListActiveRecurring(context.Context) ([]core.RecurringTransaction, error) {
	return s.listRecurring(func(r core.RecurringTransaction) bool { return r.Active }), nil
}

func (s *Store) listRecurring(keep func(core.RecurringTransaction) bool) []core.RecurringTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.RecurringTransaction
	for _, r := range s.recurring {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate.Time) {
			return out[i].StartDate.Before(out[j].StartDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
