package storage

import (
	"context"
	"fmt"

	"foretrack/internal/core"
)

const recurringColumns = `id, user_id, kind, amount_minor, currency, category, note, frequency,
	start_date, end_date, last_run_at, active, created_at`

func (r *SQLRepository) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) error {
	_, err := r.exec(ctx,
		`INSERT INTO recurring_transactions (`+recurringColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.UserID, string(rt.Kind), rt.Amount.Minor, string(rt.Currency), rt.Category, rt.Note,
		string(rt.Every), rt.StartDate.String(), rt.EndDate.String(), toMicros(rt.LastRunAt), rt.Active,
		toMicros(rt.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert recurring: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) error {
	return mustAffect(r.exec(ctx,
		`UPDATE recurring_transactions SET kind = ?, amount_minor = ?, currency = ?, category = ?, note = ?,
		   frequency = ?, start_date = ?, end_date = ?, last_run_at = ?, active = ?
		 WHERE id = ? AND user_id = ?`,
		string(rt.Kind), rt.Amount.Minor, string(rt.Currency), rt.Category, rt.Note, string(rt.Every),
		rt.StartDate.String(), rt.EndDate.String(), toMicros(rt.LastRunAt), rt.Active, rt.ID, rt.UserID))
}

func (r *SQLRepository) DeleteRecurring(ctx context.Context, userID, id string) error {
	return mustAffect(r.exec(ctx, `DELETE FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLRepository) GetRecurring(ctx context.Context, userID, id string) (core.RecurringTransaction, error) {
	row := r.queryRow(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID)
	rt, err := scanRecurring(row)
	return rt, notFound(err)
}

func (r *SQLRepository) ListRecurring(ctx context.Context, userID string) ([]core.RecurringTransaction, error) {
	return r.listRecurring(ctx, `WHERE user_id = ?`, userID)
}

func (r *SQLRepository) ListActiveRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return r.listRecurring(ctx, `WHERE active = ?`, true)
}

func (r *SQLRepository) listRecurring(ctx context.Context, where string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := r.query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions `+where+` ORDER BY start_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func scanRecurring(s scanner) (core.RecurringTransaction, error) {
	var (
		rt                                core.RecurringTransaction
		kind, currency, every, start, end string
		lastRun, created                  int64
	)
	err := s.Scan(&rt.ID, &rt.UserID, &kind, &rt.Amount.Minor, &currency, &rt.Category, &rt.Note, &every,
		&start, &end, &lastRun, &rt.Active, &created)
	if err != nil {
		return rt, err
	}
	if rt.StartDate, err = core.ParseDate(start); err != nil {
		return rt, err
	}
	if rt.EndDate, err = parseDateText(end); err != nil {
		return rt, err
	}
	rt.Kind = core.Kind(kind)
	rt.Currency = core.Currency(currency)
	rt.Every = core.Frequency(every)
	rt.LastRunAt = fromMicros(lastRun)
	rt.CreatedAt = fromMicros(created)
	return rt, nil
}
