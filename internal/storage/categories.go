package storage

import (
	"context"
	"fmt"

	"foretrack/internal/core"
)

const categoryColumns = `id, user_id, kind, name, icon, color, created_at`

func (r *SQLRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.exec(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, string(c.Kind), c.Name, c.Icon, c.Color, toMicros(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	err := mustAffect(r.exec(ctx,
		`UPDATE categories SET kind = ?, name = ?, icon = ?, color = ? WHERE id = ? AND user_id = ?`,
		string(c.Kind), c.Name, c.Icon, c.Color, c.ID, c.UserID))
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	return mustAffect(r.exec(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	return c, notFound(err)
}

func (r *SQLRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY lower(name)`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c       core.Category
		kind    string
		created int64
	)
	if err := s.Scan(&c.ID, &c.UserID, &kind, &c.Name, &c.Icon, &c.Color, &created); err != nil {
		return c, err
	}
	c.Kind = core.Kind(kind)
	c.Custom = true
	c.CreatedAt = fromMicros(created)
	return c, nil
}
