package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foretrack/internal/core"
)

func (r *SQLRepository) GetSettings(ctx context.Context, userID string) (core.Settings, error) {
	row := r.queryRow(ctx,
		`SELECT user_id, currency, email, weekly_summary, updated_at FROM user_settings WHERE user_id = ?`, userID)
	s, err := scanSettings(row)
	return s, notFound(err)
}

func (r *SQLRepository) PutSettings(ctx context.Context, s core.Settings) error {
	_, err := r.exec(ctx,
		`INSERT INTO user_settings (user_id, currency, email, weekly_summary, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   currency = excluded.currency,
		   email = excluded.email,
		   weekly_summary = excluded.weekly_summary,
		   updated_at = excluded.updated_at`,
		s.UserID, string(s.Currency), s.Email, s.WeeklySummary, toMicros(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListSummaryRecipients(ctx context.Context) ([]core.Settings, error) {
	rows, err := r.query(ctx,
		`SELECT user_id, currency, email, weekly_summary, updated_at FROM user_settings
		 WHERE weekly_summary = ? AND email <> '' ORDER BY user_id`, true)
	if err != nil {
		return nil, fmt.Errorf("list summary recipients: %w", err)
	}
	defer rows.Close()

	var out []core.Settings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSettings(sc scanner) (core.Settings, error) {
	var (
		s        core.Settings
		currency string
		updated  int64
	)
	if err := sc.Scan(&s.UserID, &currency, &s.Email, &s.WeeklySummary, &updated); err != nil {
		return s, err
	}
	s.Currency = core.Currency(currency)
	s.UpdatedAt = fromMicros(updated)
	return s, nil
}

// BumpRevision increments and returns the user's ledger revision.
func (r *SQLRepository) BumpRevision(ctx context.Context, userID string) (int64, error) {
	var rev int64
	err := r.queryRow(ctx,
		`INSERT INTO user_revisions (user_id, revision) VALUES (?, 1)
		 ON CONFLICT (user_id) DO UPDATE SET revision = user_revisions.revision + 1
		 RETURNING revision`, userID).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return rev, nil
}

// Revision is 0 for a user who never wrote.
func (r *SQLRepository) Revision(ctx context.Context, userID string) (int64, error) {
	var rev int64
	err := r.queryRow(ctx, `SELECT revision FROM user_revisions WHERE user_id = ?`, userID).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

func (r *SQLRepository) LoadSnapshot(ctx context.Context, userID, scope string) (core.InsightSnapshot, error) {
	var (
		s       = core.InsightSnapshot{UserID: userID, Scope: scope}
		created int64
	)
	err := r.queryRow(ctx,
		`SELECT revision, payload, created_at FROM insight_snapshots WHERE user_id = ? AND scope = ?`,
		userID, scope).Scan(&s.Revision, &s.Payload, &created)
	if err != nil {
		return core.InsightSnapshot{}, notFound(err)
	}
	s.CreatedAt = fromMicros(created)
	return s, nil
}

// SaveSnapshot keeps the highest revision; an equal revision overwrites.
func (r *SQLRepository) SaveSnapshot(ctx context.Context, s core.InsightSnapshot) (bool, error) {
	res, err := r.exec(ctx,
		`INSERT INTO insight_snapshots (user_id, scope, revision, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, scope) DO UPDATE SET
		   revision = excluded.revision,
		   payload = excluded.payload,
		   created_at = excluded.created_at
		 WHERE excluded.revision >= insight_snapshots.revision`,
		s.UserID, s.Scope, s.Revision, s.Payload, toMicros(s.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
