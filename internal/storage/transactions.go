package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foretrack/internal/core"
)

// Expenses and income live in separate tables; the category column of
// incomes is called source.
func ledgerTable(kind core.Kind) (table, categoryCol string, err error) {
	switch kind {
	case core.Expense:
		return "expenses", "category", nil
	case core.Income:
		return "incomes", "source", nil
	default:
		return "", "", fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
}

func (r *SQLRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	table, col, err := ledgerTable(tx.Kind)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx,
		`INSERT INTO `+table+` (id, user_id, amount_minor, currency, `+col+`, note, occurred_on, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount.Minor, string(tx.Currency), tx.Category, tx.Note, tx.Date.String(), toMicros(tx.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert %s: %w", tx.Kind, err)
	}
	return nil
}

func (r *SQLRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	table, col, err := ledgerTable(tx.Kind)
	if err != nil {
		return err
	}
	return mustAffect(r.exec(ctx,
		`UPDATE `+table+` SET amount_minor = ?, currency = ?, `+col+` = ?, note = ?, occurred_on = ?
		 WHERE id = ? AND user_id = ?`,
		tx.Amount.Minor, string(tx.Currency), tx.Category, tx.Note, tx.Date.String(), tx.ID, tx.UserID))
}

func (r *SQLRepository) DeleteTransaction(ctx context.Context, userID string, kind core.Kind, id string) error {
	table, _, err := ledgerTable(kind)
	if err != nil {
		return err
	}
	return mustAffect(r.exec(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLRepository) GetTransaction(ctx context.Context, userID string, kind core.Kind, id string) (core.Transaction, error) {
	table, col, err := ledgerTable(kind)
	if err != nil {
		return core.Transaction{}, err
	}
	row := r.queryRow(ctx,
		`SELECT id, user_id, '`+string(kind)+`', amount_minor, currency, `+col+`, note, occurred_on, created_at
		 FROM `+table+` WHERE id = ? AND user_id = ?`,
		id, userID)
	tx, err := scanTransaction(row)
	return tx, notFound(err)
}

func (r *SQLRepository) ListTransactions(ctx context.Context, userID string, from, to core.Date) ([]core.Transaction, error) {
	lo, hi := dateBounds(from, to)
	rows, err := r.query(ctx,
		`SELECT id, user_id, 'expense' AS kind, amount_minor, currency, category, note, occurred_on, created_at
		   FROM expenses WHERE user_id = ? AND occurred_on >= ? AND occurred_on <= ?
		 UNION ALL
		 SELECT id, user_id, 'income' AS kind, amount_minor, currency, source, note, occurred_on, created_at
		   FROM incomes WHERE user_id = ? AND occurred_on >= ? AND occurred_on <= ?
		 ORDER BY occurred_on DESC, created_at DESC, id`,
		userID, lo, hi, userID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                   core.Transaction
		kind, currency, date string
		created              int64
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &kind, &tx.Amount.Minor, &currency, &tx.Category, &tx.Note, &date, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return tx, err
	}
	tx.Kind = core.Kind(kind)
	tx.Currency = core.Currency(currency)
	tx.Date = d
	tx.CreatedAt = fromMicros(created)
	return tx, nil
}
