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

// BudgetStore is what BudgetService needs from storage.
type BudgetStore interface {
	ports.BudgetStore
	ports.RevisionStore
}

// BudgetService manages budgets. Budgets feed the insight prompts, so every
// write bumps the user's revision like a ledger write does.
type BudgetService struct {
	store  BudgetStore
	revs   *revisions
	logger *log.Logger
	now    func() time.Time
}

func NewBudgetService(store BudgetStore, logger *log.Logger) *BudgetService {
	return &BudgetService{
		store:  store,
		revs:   newRevisions(store),
		logger: logger.WithComponent(log.ComponentBudget),
		now:    utcNow,
	}
}

// NotifyStale registers inv to be told when a write could not bump the
// user's revision.
func (s *BudgetService) NotifyStale(inv Invalidator) {
	s.revs.notify(inv)
}

// Create stores a new active budget. A second active budget for the same
// category and period is rejected with ErrBudgetExists.
func (s *BudgetService) Create(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	b.ID = newID()
	b.UserID = userID
	b.Category = strings.TrimSpace(b.Category)
	b.Active = true
	b.CreatedAt = s.now()
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, conflictAs(err, ErrBudgetExists)
	}
	s.afterWrite(ctx, userID)
	s.logger.InfoContext(ctx, "Budget created",
		log.FieldUserID, userID,
		log.FieldCategory, b.Category,
		"period", string(b.Period),
		log.FieldAmountMinor, b.Limit.Minor)
	return b, nil
}

// Update replaces category, limit, period and the active flag.
func (s *BudgetService) Update(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	existing, err := s.store.GetBudget(ctx, userID, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	b.UserID = userID
	b.Category = strings.TrimSpace(b.Category)
	b.CreatedAt = existing.CreatedAt
	if b.Currency == "" {
		b.Currency = existing.Currency
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, conflictAs(err, ErrBudgetExists)
	}
	s.afterWrite(ctx, userID)
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.afterWrite(ctx, userID)
	return nil
}

func (s *BudgetService) afterWrite(ctx context.Context, userID string) {
	if _, err := s.revs.bump(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "Failed to bump revision", log.FieldUserID, userID, log.FieldError, err)
	}
}

func (s *BudgetService) Get(ctx context.Context, userID, id string) (core.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

func (s *BudgetService) List(ctx context.Context, userID string, activeOnly bool) ([]core.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}
