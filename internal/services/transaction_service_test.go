package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foretrack/internal/amqp"
	"foretrack/internal/analytics"
	"foretrack/internal/core"
	"foretrack/internal/log"
	"foretrack/internal/storage/memory"
)

func TestTransactionService_CreatePublishesAndBumpsRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.add(t, "u1", core.Expense, "Food", 1250, core.NewDate(2025, 3, 10))
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "u1", tx.UserID)
	assert.Equal(t, testNow, tx.CreatedAt)

	rev, err := f.store.Revision(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	require.NoError(t, f.tx.Close())
	msgs := f.publisher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, amqp.ActionCreated, msgs[0].Action)
	assert.Equal(t, tx.ID, msgs[0].TransactionID)
	assert.Equal(t, int64(1), msgs[0].Revision)
}

func TestTransactionService_PublishFailureDoesNotFailWrite(t *testing.T) {
	store := memory.New()
	svc := NewTransactionService(store, &recordingPublisher{err: errors.New("broker down")}, log.Discard())

	tx, err := svc.Create(context.Background(), "u1", core.Transaction{
		Kind: core.Income, Amount: core.Money{Minor: 100}, Currency: core.EUR,
		Category: "Salary", Date: core.NewDate(2025, 1, 1),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	got, err := store.GetTransaction(context.Background(), "u1", core.Income, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Amount, got.Amount)
}

func TestTransactionService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"zero amount", core.Transaction{Kind: core.Expense, Currency: core.USD, Category: "Food", Date: core.NewDate(2025, 1, 1)}, core.ErrInvalidAmount},
		{"bad kind", core.Transaction{Kind: "transfer", Amount: core.Money{Minor: 1}, Currency: core.USD, Category: "Food", Date: core.NewDate(2025, 1, 1)}, core.ErrInvalidKind},
		{"no category", core.Transaction{Kind: core.Expense, Amount: core.Money{Minor: 1}, Currency: core.USD, Date: core.NewDate(2025, 1, 1)}, core.ErrEmptyCategory},
		{"bad currency", core.Transaction{Kind: core.Expense, Amount: core.Money{Minor: 1}, Currency: "XXX", Category: "Food", Date: core.NewDate(2025, 1, 1)}, core.ErrInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tx.Create(ctx, "u1", tt.tx)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}

	rev, _ := f.store.Revision(ctx, "u1")
	assert.Zero(t, rev)
}

func TestTransactionService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.add(t, "u1", core.Expense, "Food", 1000, core.NewDate(2025, 3, 1))

	tx.Amount = core.Money{Minor: 2000}
	tx.Note = "team lunch"
	updated, err := f.tx.Update(ctx, "u1", tx)
	require.NoError(t, err)
	assert.Equal(t, testNow, updated.CreatedAt)

	_, err = f.tx.Update(ctx, "u2", tx)
	assert.True(t, errors.Is(err, core.ErrNotFound), "other users cannot update")

	require.NoError(t, f.tx.Delete(ctx, "u1", core.Expense, tx.ID))
	assert.True(t, errors.Is(f.tx.Delete(ctx, "u1", core.Expense, tx.ID), core.ErrNotFound))

	rev, _ := f.store.Revision(ctx, "u1")
	assert.Equal(t, int64(3), rev)

	require.NoError(t, f.tx.Close())
	msgs := f.publisher.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, amqp.ActionDeleted, msgs[2].Action)
}

func TestTransactionService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 1000, core.NewDate(2025, 3, 1))
	f.add(t, "u1", core.Expense, "Transport", 300, core.NewDate(2025, 3, 2))
	f.add(t, "u1", core.Income, "Salary", 50000, core.NewDate(2025, 3, 3))
	f.add(t, "u2", core.Expense, "Food", 999, core.NewDate(2025, 3, 3))

	page, err := f.tx.List(ctx, "u1", analytics.Filter{Kind: core.Expense}, analytics.AmountDesc, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Food", page.Items[0].Category)
	assert.Equal(t, int64(1300), page.TotalsFor(core.USD).Expense.Minor)

	_, err = f.tx.Create(ctx, "u1", core.Transaction{
		Kind: core.Expense, Amount: core.Money{Minor: 1200}, Currency: core.JPY,
		Category: "Food", Date: core.NewDate(2025, 3, 4),
	})
	require.NoError(t, err)
	page, err = f.tx.List(ctx, "u1", analytics.Filter{Kind: core.Expense}, analytics.DateDesc, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Totals, 2)
	assert.Equal(t, int64(1200), page.TotalsFor(core.JPY).Expense.Minor)
	assert.Equal(t, int64(1300), page.TotalsFor(core.USD).Expense.Minor)

	_, err = f.tx.List(ctx, "u1", analytics.Filter{From: core.NewDate(2025, 3, 5), To: core.NewDate(2025, 3, 1)}, analytics.DateDesc, 1, 20)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestBudgetService_DuplicateActiveBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "u1", "Food", core.Monthly, 40000)

	_, err := f.budgets.Create(ctx, "u1", core.Budget{Category: "food", Limit: core.Money{Minor: 1}, Currency: core.USD, Period: core.Monthly})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConflict))
	assert.Equal(t, "A budget for this category and period already exists", err.Error())

	_, err = f.budgets.Create(ctx, "u1", core.Budget{Category: "Food", Limit: core.Money{Minor: 1}, Currency: core.USD, Period: core.Weekly})
	assert.NoError(t, err, "a different period is allowed")

	_, err = f.budgets.Create(ctx, "u1", core.Budget{Category: "Food", Currency: core.USD, Period: core.Yearly})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr), "zero limit is invalid")
}

func TestBudgetService_WritesBumpRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	revision := func() int64 {
		rev, err := f.store.Revision(ctx, "u1")
		require.NoError(t, err)
		return rev
	}

	b := f.budget(t, "u1", "Food", core.Monthly, 40000)
	assert.Equal(t, int64(1), revision())

	b.Limit = core.Money{Minor: 50000}
	_, err := f.budgets.Update(ctx, "u1", b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revision())

	require.NoError(t, f.budgets.Delete(ctx, "u1", b.ID))
	assert.Equal(t, int64(3), revision())

	_, err = f.budgets.Create(ctx, "u1", core.Budget{Category: "Food", Currency: core.USD, Period: core.Yearly})
	require.Error(t, err)
	assert.Equal(t, int64(3), revision(), "rejected writes do not bump")
}

func TestCategoryService(t *testing.T) {
	store := memory.New()
	svc := NewCategoryService(store)
	ctx := context.Background()

	pets, err := svc.Create(ctx, "u1", core.Category{Kind: core.Expense, Name: " Pets "})
	require.NoError(t, err)
	assert.Equal(t, "Pets", pets.Name)
	assert.Equal(t, "📦", pets.Icon)
	assert.Equal(t, "Gray", pets.Color)

	_, err = svc.Create(ctx, "u1", core.Category{Kind: core.Expense, Name: "pets"})
	assert.True(t, errors.Is(err, core.ErrConflict))
	_, err = svc.Create(ctx, "u1", core.Category{Kind: core.Expense, Name: "food"})
	assert.Equal(t, ErrCategoryExists, err)

	list, err := svc.List(ctx, "u1", core.Expense)
	require.NoError(t, err)
	builtins := core.BuiltinCategories(core.Expense)
	require.Len(t, list, len(builtins)+1)
	assert.Equal(t, builtins[0].Name, list[0].Name)
	assert.Equal(t, "Pets", list[len(list)-1].Name)

	income, err := svc.List(ctx, "u1", core.Income)
	require.NoError(t, err)
	assert.Len(t, income, len(core.BuiltinCategories(core.Income)))

	require.NoError(t, svc.Delete(ctx, "u1", pets.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, "u1", pets.ID), core.ErrNotFound))
}

func TestSettingsService(t *testing.T) {
	store := memory.New()
	svc := NewSettingsService(store)
	svc.now = fixedClock
	ctx := context.Background()

	st, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.USD, st.Currency)
	assert.False(t, st.WeeklySummary)

	_, err = svc.Put(ctx, "u1", core.Settings{Currency: core.EUR, WeeklySummary: true})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr), "weekly summary needs an email")
	rev, err := store.Revision(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, rev)

	saved, err := svc.Put(ctx, "u1", core.Settings{Currency: core.EUR, Email: " me@example.com ", WeeklySummary: true})
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", saved.Email)
	assert.Equal(t, testNow, saved.UpdatedAt)
	rev, err = store.Revision(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev, "saved settings bump the revision")

	st, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.EUR, st.Currency)
}
