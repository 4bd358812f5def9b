// Package services orchestrates the ledger: it validates input, talks to the
// store, publishes change events and feeds the analytics and insight layers.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"foretrack/internal/amqp"
	"foretrack/internal/core"
	"foretrack/internal/ports"
)

// ValidationError marks input the caller must fix. The HTTP layer maps it to
// 400 and shows the wrapped message.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// ConflictError carries a user-facing message for a uniqueness violation.
// It matches core.ErrConflict under errors.Is.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string        { return e.Message }
func (e *ConflictError) Is(target error) bool { return target == core.ErrConflict }

var (
	ErrBudgetExists   = &ConflictError{Message: "A budget for this category and period already exists"}
	ErrCategoryExists = &ConflictError{Message: "A category with this name already exists"}
)

// conflictAs replaces a storage conflict with a friendlier one.
func conflictAs(err error, friendly *ConflictError) error {
	if errors.Is(err, core.ErrConflict) {
		return friendly
	}
	return err
}

// EventPublisher announces ledger writes. Implemented by *amqp.Client.
type EventPublisher interface {
	PublishTransactionChanged(ctx context.Context, msg *amqp.TransactionChanged) error
}

// Converter converts money between currencies. Implemented by *rates.Converter.
type Converter interface {
	Convert(ctx context.Context, m core.Money, from, to core.Currency) (core.Money, error)
}

// Mailer delivers the weekly summary. Implemented by *notify.EmailSender.
type Mailer interface {
	SendWeeklySummary(ctx context.Context, to string, report Report, narrative string) error
}

// Exporter appends ledger rows to a spreadsheet. Implemented by *sheets.Exporter.
type Exporter interface {
	AppendTransactions(ctx context.Context, spreadsheetID, sheet string, txs []core.Transaction, currency core.Currency) (int, error)
}

// Invalidator drops derived per-user data. Implemented by *InsightService.
type Invalidator interface {
	Invalidate(userID string)
}

// revisions advances a user's revision after a write. A failed bump leaves
// the write in place under the old revision, so the registered invalidators
// are told instead.
type revisions struct {
	store ports.RevisionStore

	mu    sync.RWMutex
	stale []Invalidator
}

func newRevisions(store ports.RevisionStore) *revisions {
	return &revisions{store: store}
}

func (r *revisions) notify(inv Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = append(r.stale, inv)
}

func (r *revisions) bump(ctx context.Context, userID string) (int64, error) {
	rev, err := r.store.BumpRevision(ctx, userID)
	if err != nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, inv := range r.stale {
			inv.Invalidate(userID)
		}
		return 0, err
	}
	return rev, nil
}

func newID() string {
	return uuid.NewString()
}

func utcNow() time.Time {
	return time.Now().UTC()
}
