package storage

import (
	"context"
	"fmt"

	"foretrack/internal/core"
)

const budgetColumns = `id, user_id, category, limit_minor, currency, period, active, created_at`

func (r *SQLRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.exec(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Category, b.Limit.Minor, string(b.Currency), string(b.Period), b.Active, toMicros(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	err := mustAffect(r.exec(ctx,
		`UPDATE budgets SET category = ?, limit_minor = ?, currency = ?, period = ?, active = ?
		 WHERE id = ? AND user_id = ?`,
		b.Category, b.Limit.Minor, string(b.Currency), string(b.Period), b.Active, b.ID, b.UserID))
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	return mustAffect(r.exec(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLRepository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := r.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row)
	return b, notFound(err)
}

func (r *SQLRepository) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]core.Budget, error) {
	q := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	args := []any{userID}
	if activeOnly {
		q += ` AND active = ?`
		args = append(args, true)
	}
	rows, err := r.query(ctx, q+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                core.Budget
		currency, period string
		created          int64
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.Category, &b.Limit.Minor, &currency, &period, &b.Active, &created); err != nil {
		return b, err
	}
	b.Currency = core.Currency(currency)
	b.Period = core.BudgetPeriod(period)
	b.CreatedAt = fromMicros(created)
	return b, nil
}
