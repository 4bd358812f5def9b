package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"foretrack/internal/amqp"
	"foretrack/internal/analytics"
	"foretrack/internal/core"
	"foretrack/internal/log"
	"foretrack/internal/ports"
)

// LedgerStore is what TransactionService needs from storage.
type LedgerStore interface {
	ports.TransactionStore
	ports.RevisionStore
}

// TransactionService saves expenses and income, bumps the user's revision
// and announces every write. Publishing never fails a request.
type TransactionService struct {
	store     LedgerStore
	revs      *revisions
	publisher EventPublisher
	logger    *log.Logger
	audit     *log.StructuredLogger
	now       func() time.Time

	inflight sync.WaitGroup
}

func NewTransactionService(store LedgerStore, publisher EventPublisher, logger *log.Logger) *TransactionService {
	logger = logger.WithComponent(log.ComponentLedger)
	return &TransactionService{
		store:     store,
		revs:      newRevisions(store),
		publisher: publisher,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
		now:       utcNow,
	}
}

// Create assigns an ID and creation time, validates and stores tx.
func (s *TransactionService) Create(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	tx.ID = newID()
	tx.UserID = userID
	tx.CreatedAt = s.now()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save %s: %w", tx.Kind, err)
	}
	s.afterWrite(ctx, tx, amqp.ActionCreated)
	return tx, nil
}

// Update replaces the mutable fields of an existing record. Kind cannot change.
func (s *TransactionService) Update(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Kind.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	existing, err := s.store.GetTransaction(ctx, userID, tx.Kind, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.UserID = userID
	tx.CreatedAt = existing.CreatedAt
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update %s: %w", tx.Kind, err)
	}
	s.afterWrite(ctx, tx, amqp.ActionUpdated)
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID string, kind core.Kind, id string) error {
	if err := kind.Validate(); err != nil {
		return invalid(err)
	}
	existing, err := s.store.GetTransaction(ctx, userID, kind, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, userID, kind, id); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	s.afterWrite(ctx, existing, amqp.ActionDeleted)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, userID string, kind core.Kind, id string) (core.Transaction, error) {
	if err := kind.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	return s.store.GetTransaction(ctx, userID, kind, id)
}

// List returns one page of the filtered ledger. The date bounds of the filter
// are pushed down to storage.
func (s *TransactionService) List(ctx context.Context, userID string, f analytics.Filter, order analytics.SortOrder, page, perPage int) (analytics.Page, error) {
	if f.Kind != "" {
		if err := f.Kind.Validate(); err != nil {
			return analytics.Page{}, invalid(err)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return analytics.Page{}, invalid(fmt.Errorf("%w: to is before from", core.ErrInvalidDate))
	}
	txs, err := s.store.ListTransactions(ctx, userID, f.From, f.To)
	if err != nil {
		return analytics.Page{}, fmt.Errorf("list transactions: %w", err)
	}
	return analytics.Ledger(txs, f, order, page, perPage), nil
}

// afterWrite bumps the revision and publishes in the background. Failures
// are logged only: the write itself already succeeded.
func (s *TransactionService) afterWrite(ctx context.Context, tx core.Transaction, action string) {
	rev, err := s.revs.bump(ctx, tx.UserID)
	if err != nil {
		s.audit.LogError(ctx, "Failed to bump revision", err, log.ComponentLedger, action,
			log.NewFields().WithUser(tx.UserID))
		return
	}
	s.audit.LogTransactionSaved(ctx, tx.UserID, tx.ID, string(tx.Kind), tx.Amount.Minor, string(tx.Currency), tx.Category, rev)

	if s.publisher == nil {
		return
	}
	msg := amqp.NewTransactionChanged(tx.UserID, tx.ID, string(tx.Kind), action, rev)
	pubCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.publisher.PublishTransactionChanged(pubCtx, msg); err != nil {
			s.logger.WarnContext(pubCtx, "Failed to publish transaction event",
				log.FieldUserID, tx.UserID,
				log.FieldTransactionID, tx.ID,
				log.FieldRevision, rev,
				log.FieldError, err)
		}
	}()
}

// NotifyStale registers inv to be told when a write could not bump the
// user's revision.
func (s *TransactionService) NotifyStale(inv Invalidator) {
	s.revs.notify(inv)
}

// Close waits for in-flight publishes.
func (s *TransactionService) Close() error {
	s.inflight.Wait()
	return nil
}
