package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foretrack/internal/core"
	"foretrack/internal/log"
	"foretrack/internal/ports"
)

// RecurringService manages a user's recurring templates.
type RecurringService struct {
	store ports.RecurringStore
	now   func() time.Time
}

func NewRecurringService(store ports.RecurringStore) *RecurringService {
	return &RecurringService{store: store, now: utcNow}
}

func (s *RecurringService) Create(ctx context.Context, userID string, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	r.ID = newID()
	r.UserID = userID
	r.Category = strings.TrimSpace(r.Category)
	r.Active = true
	r.LastRunAt = time.Time{}
	r.CreatedAt = s.now()
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, invalid(err)
	}
	if err := s.store.CreateRecurring(ctx, r); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("save recurring: %w", err)
	}
	return r, nil
}

// Update replaces the template. The last run is kept so an edit does not
// trigger an extra run.
func (s *RecurringService) Update(ctx context.Context, userID string, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	existing, err := s.store.GetRecurring(ctx, userID, r.ID)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	r.UserID = userID
	r.Category = strings.TrimSpace(r.Category)
	r.LastRunAt = existing.LastRunAt
	r.CreatedAt = existing.CreatedAt
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, invalid(err)
	}
	if err := s.store.UpdateRecurring(ctx, r); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("update recurring: %w", err)
	}
	return r, nil
}

func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteRecurring(ctx, userID, id)
}

func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringTransaction, error) {
	return s.store.ListRecurring(ctx, userID)
}

// RecurringProcessor turns due templates into transactions.
type RecurringProcessor struct {
	store        ports.RecurringStore
	transactions *TransactionService
	logger       *log.Logger
}

func NewRecurringProcessor(store ports.RecurringStore, transactions *TransactionService, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
		logger:       logger.WithComponent(log.ComponentRecurring),
	}
}

// ProcessDue creates one transaction, dated today, for every active template
// that is due, and records the run. Templates that have not started yet or
// have ended are skipped. Per-template failures are logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	now = now.UTC()
	today := core.DateOf(now)

	templates, err := p.store.ListActiveRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get active recurring transactions: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring transactions",
		"total_active", len(templates),
		"processing_date", today.String())

	processed := 0
	for _, rt := range templates {
		if today.Before(rt.StartDate.Time) || rt.Expired(today) {
			continue
		}
		checker, err := GetDuenessChecker(rt.Every)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to check if template is due", "recurring_id", rt.ID, log.FieldError, err)
			continue
		}
		if !checker.IsDue(rt.LastRunAt, now, rt.StartDate) {
			continue
		}

		tx, err := p.transactions.Create(ctx, rt.UserID, rt.Instantiate(today))
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to create transaction from recurring template",
				"recurring_id", rt.ID,
				log.FieldUserID, rt.UserID,
				log.FieldError, err)
			continue
		}

		rt.LastRunAt = now
		if err := p.store.UpdateRecurring(ctx, rt); err != nil {
			// the transaction exists; the next run may duplicate it
			p.logger.ErrorContext(ctx, "Failed to update last run", "recurring_id", rt.ID, log.FieldError, err)
		}

		processed++
		p.logger.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", rt.ID,
			log.FieldTransactionID, tx.ID,
			log.FieldAmountMinor, rt.Amount.Minor,
			"frequency", string(rt.Every))
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"total_checked", len(templates))
	return processed, nil
}
