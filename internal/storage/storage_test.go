package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foretrack/internal/core"
	"foretrack/internal/log"
)

func openTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := Open(context.Background(), Options{
		Dialect: SQLite,
		DSN:     filepath.Join(t.TempDir(), "test.db"),
		Migrate: true,
		Logger:  log.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func ts(sec int64) time.Time { return time.Unix(1_700_000_000+sec, 0).UTC() }

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`
	assert.Equal(t, q, rebind(SQLite, q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`, rebind(Postgres, q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN(SQLite, "a.db"))
	assert.Equal(t, "a.db?mode=ro&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN(SQLite, "a.db?mode=ro"))
	assert.Equal(t, "postgres://x", sqliteDSN(Postgres, "postgres://x"))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(SQLite, path))
	require.NoError(t, RunMigrations(SQLite, path))
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	txs := []core.Transaction{
		{ID: "e1", UserID: "u1", Kind: core.Expense, Amount: core.Money{Minor: 1500}, Currency: core.USD, Category: "Food", Date: core.NewDate(2024, 3, 10), CreatedAt: ts(1)},
		{ID: "e2", UserID: "u1", Kind: core.Expense, Amount: core.Money{Minor: 900}, Currency: core.USD, Category: "Transport", Date: core.NewDate(2024, 3, 12), CreatedAt: ts(2)},
		{ID: "i1", UserID: "u1", Kind: core.Income, Amount: core.Money{Minor: 500000}, Currency: core.USD, Category: "Salary", Date: core.NewDate(2024, 3, 10), CreatedAt: ts(3)},
		{ID: "x1", UserID: "u2", Kind: core.Expense, Amount: core.Money{Minor: 100}, Currency: core.EUR, Category: "Food", Date: core.NewDate(2024, 3, 10), CreatedAt: ts(4)},
	}
	for _, tx := range txs {
		require.NoError(t, repo.CreateTransaction(ctx, tx))
	}

	err := repo.CreateTransaction(ctx, txs[0])
	assert.True(t, errors.Is(err, core.ErrConflict), "duplicate id: %v", err)

	list, err := repo.ListTransactions(ctx, "u1", core.Date{}, core.Date{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"e2", "i1", "e1"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, core.Income, list[1].Kind)
	assert.Equal(t, "Salary", list[1].Category)
	assert.Equal(t, ts(3), list[1].CreatedAt)

	bounded, err := repo.ListTransactions(ctx, "u1", core.NewDate(2024, 3, 11), core.NewDate(2024, 3, 12))
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	assert.Equal(t, "e2", bounded[0].ID)

	got, err := repo.GetTransaction(ctx, "u1", core.Expense, "e1")
	require.NoError(t, err)
	assert.Equal(t, txs[0], got)

	_, err = repo.GetTransaction(ctx, "u2", core.Expense, "e1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got.Note = "lunch"
	got.Amount = core.Money{Minor: 1600}
	require.NoError(t, repo.UpdateTransaction(ctx, got))
	again, err := repo.GetTransaction(ctx, "u1", core.Expense, "e1")
	require.NoError(t, err)
	assert.Equal(t, "lunch", again.Note)
	assert.Equal(t, int64(1600), again.Amount.Minor)

	assert.ErrorIs(t, repo.DeleteTransaction(ctx, "u2", core.Expense, "e1"), core.ErrNotFound)
	require.NoError(t, repo.DeleteTransaction(ctx, "u1", core.Expense, "e1"))
	assert.ErrorIs(t, repo.DeleteTransaction(ctx, "u1", core.Expense, "e1"), core.ErrNotFound)
}

func TestBudgetUniqueAmongActive(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	b := core.Budget{ID: "b1", UserID: "u1", Category: "Food", Limit: core.Money{Minor: 40000}, Currency: core.USD, Period: core.Monthly, Active: true, CreatedAt: ts(1)}
	require.NoError(t, repo.CreateBudget(ctx, b))

	dup := b
	dup.ID, dup.Category = "b2", "food"
	assert.ErrorIs(t, repo.CreateBudget(ctx, dup), core.ErrConflict)

	weekly := dup
	weekly.Period = core.Weekly
	require.NoError(t, repo.CreateBudget(ctx, weekly))

	inactive := dup
	inactive.ID, inactive.Active = "b3", false
	require.NoError(t, repo.CreateBudget(ctx, inactive))

	inactive.Active = true
	assert.ErrorIs(t, repo.UpdateBudget(ctx, inactive), core.ErrConflict)

	all, err := repo.ListBudgets(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	active, err := repo.ListBudgets(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	got, err := repo.GetBudget(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	require.NoError(t, repo.DeleteBudget(ctx, "u1", "b1"))
	assert.ErrorIs(t, repo.DeleteBudget(ctx, "u1", "b1"), core.ErrNotFound)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	c := core.Category{ID: "c1", UserID: "u1", Kind: core.Expense, Name: "Pets", Icon: "🐶", Color: "#111111", Custom: true, CreatedAt: ts(1)}
	require.NoError(t, repo.CreateCategory(ctx, c))
	dup := c
	dup.ID, dup.Name = "c2", "PETS"
	assert.ErrorIs(t, repo.CreateCategory(ctx, dup), core.ErrConflict)

	other := c
	other.UserID = "u2"
	other.ID = "c3"
	require.NoError(t, repo.CreateCategory(ctx, other))

	list, err := repo.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c, list[0])
}

func TestSettingsAndRevisions(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	_, err := repo.GetSettings(ctx, "u1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	s := core.Settings{UserID: "u1", Currency: core.EUR, Email: "a@example.test", WeeklySummary: true, UpdatedAt: ts(5)}
	require.NoError(t, repo.PutSettings(ctx, s))
	s.Currency = core.GBP
	require.NoError(t, repo.PutSettings(ctx, s))
	require.NoError(t, repo.PutSettings(ctx, core.Settings{UserID: "u2", Currency: core.USD, UpdatedAt: ts(6)}))

	got, err := repo.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	recipients, err := repo.ListSummaryRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "u1", recipients[0].UserID)

	rev, err := repo.Revision(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, rev)
	for want := int64(1); want <= 3; want++ {
		rev, err = repo.BumpRevision(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, rev)
	}
	rev, err = repo.Revision(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)
}

func TestSnapshotHighestRevisionWins(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	_, err := repo.LoadSnapshot(ctx, "u1", "insights")
	assert.ErrorIs(t, err, core.ErrNotFound)

	ok, err := repo.SaveSnapshot(ctx, core.InsightSnapshot{UserID: "u1", Scope: "insights", Revision: 5, Payload: []byte(`[5]`), CreatedAt: ts(1)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SaveSnapshot(ctx, core.InsightSnapshot{UserID: "u1", Scope: "insights", Revision: 4, Payload: []byte(`[4]`), CreatedAt: ts(2)})
	require.NoError(t, err)
	assert.False(t, ok, "older revision must not overwrite")

	ok, err = repo.SaveSnapshot(ctx, core.InsightSnapshot{UserID: "u1", Scope: "insights", Revision: 6, Payload: []byte(`[6]`), CreatedAt: ts(3)})
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := repo.LoadSnapshot(ctx, "u1", "insights")
	require.NoError(t, err)
	assert.Equal(t, int64(6), snap.Revision)
	assert.Equal(t, `[6]`, string(snap.Payload))
}

func TestRecurring(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	rt := core.RecurringTransaction{
		ID: "r1", UserID: "u1", Kind: core.Expense, Amount: core.Money{Minor: 1299}, Currency: core.USD,
		Category: "Bills", Note: "streaming", Every: core.EveryMonth, StartDate: core.NewDate(2024, 1, 15),
		Active: true, CreatedAt: ts(1),
	}
	require.NoError(t, repo.CreateRecurring(ctx, rt))
	paused := rt
	paused.ID, paused.Active, paused.EndDate = "r2", false, core.NewDate(2024, 12, 31)
	require.NoError(t, repo.CreateRecurring(ctx, paused))

	active, err := repo.ListActiveRecurring(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rt, active[0])

	rt.LastRunAt = ts(100)
	require.NoError(t, repo.UpdateRecurring(ctx, rt))
	got, err := repo.GetRecurring(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, ts(100), got.LastRunAt)

	all, err := repo.ListRecurring(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, core.NewDate(2024, 12, 31), all[1].EndDate)

	require.NoError(t, repo.DeleteRecurring(ctx, "u1", "r2"))
	_, err = repo.GetRecurring(ctx, "u1", "r2")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
