package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
	"foretrack/internal/log"
)

func TestAnalyticsService_Report(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "u1", core.Expense, "Food", 5000, core.NewDate(2025, 3, 10))
	f.add(t, "u1", core.Expense, "Transport", 2000, core.NewDate(2025, 3, 1))
	f.add(t, "u1", core.Income, "Salary", 100000, core.NewDate(2025, 3, 1))
	f.add(t, "u1", core.Expense, "Food", 1000, core.NewDate(2025, 2, 10)) // previous window
	f.add(t, "u1", core.Expense, "Food", 777, core.NewDate(2024, 11, 2))  // outside both
	f.budget(t, "u1", "Food", core.Monthly, 10000)
	f.budget(t, "u1", "Food", core.Weekly, 3000)

	rep := f.analytics.Report(ctx, "u1", analytics.Month, testNow)
	require.False(t, rep.Degraded)
	assert.Equal(t, core.USD, rep.Currency)
	assert.Equal(t, "2025-02-15..2025-03-15", rep.Current.Window.String())
	assert.Equal(t, "2025-01-18..2025-02-14", rep.Previous.Window.String())

	assert.Equal(t, int64(7000), rep.Current.Totals.Expense.Minor)
	assert.Equal(t, int64(100000), rep.Current.Totals.Income.Minor)
	assert.Equal(t, int64(93000), rep.Current.Totals.Net.Minor)
	assert.Equal(t, int64(1000), rep.Previous.Totals.Expense.Minor)
	assert.InDelta(t, 600.0, rep.Changes.Expense, 0.001)
	assert.Len(t, rep.Records, 3)

	require.Len(t, rep.Budgets, 2)
	byPeriod := map[core.BudgetPeriod]analytics.BudgetStatus{}
	for _, st := range rep.Budgets {
		byPeriod[st.Budget.Period] = st
	}
	monthly := byPeriod[core.Monthly]
	assert.Equal(t, int64(5000), monthly.Spent.Minor)
	assert.InDelta(t, 50.0, monthly.Percent, 0.001)
	assert.Equal(t, analytics.BandUnder, monthly.Band)

	weekly := byPeriod[core.Weekly]
	assert.Equal(t, "2025-03-08..2025-03-15", weekly.Window.String())
	assert.Equal(t, int64(5000), weekly.Spent.Minor)
	assert.Equal(t, analytics.BandOver, weekly.Band)
	assert.Equal(t, int64(-2000), weekly.Remaining.Minor)

	assert.Equal(t, int64(13000), rep.Overall.Limit.Minor)
	assert.Equal(t, int64(7000), rep.Overall.Spent.Minor)
	assert.Equal(t, analytics.BandUnder, rep.Overall.Band)
}

func TestAnalyticsService_DegradedOnFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.add(t, "u1", core.Expense, "Food", 5000, core.NewDate(2025, 3, 10))

	svc := NewAnalyticsService(brokenStore{f.store}, f.settings, nil, log.Discard())
	rep := svc.Report(context.Background(), "u1", analytics.Week, testNow)

	assert.True(t, rep.Degraded)
	assert.Equal(t, core.USD, rep.Currency)
	assert.Zero(t, rep.Current.Totals.Expense.Minor)
	assert.NotNil(t, rep.Budgets)
	assert.Empty(t, rep.Budgets)

	_, err := f.settings.Put(context.Background(), "u1", core.Settings{Currency: core.EUR})
	require.NoError(t, err)
	rep = svc.Report(context.Background(), "u1", analytics.Week, testNow)
	assert.True(t, rep.Degraded)
	assert.Equal(t, core.EUR, rep.Currency, "degraded reports keep the user's currency")
}

func TestAnalyticsService_ConvertsForeignRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tx.Create(ctx, "u1", core.Transaction{
		Kind: core.Expense, Amount: core.Money{Minor: 500}, Currency: core.EUR,
		Category: "Food", Date: core.NewDate(2025, 3, 12),
	})
	require.NoError(t, err)
	_, err = f.tx.Create(ctx, "u1", core.Transaction{
		Kind: core.Expense, Amount: core.Money{Minor: 300}, Currency: core.GBP,
		Category: "Food", Date: core.NewDate(2025, 3, 12),
	})
	require.NoError(t, err)
	f.add(t, "u1", core.Expense, "Food", 100, core.NewDate(2025, 3, 13))

	svc := NewAnalyticsService(f.store, f.settings, doublingConverter{}, log.Discard())
	rep := svc.Report(ctx, "u1", analytics.Week, testNow)

	// EUR doubles; GBP cannot be converted and keeps its amount.
	assert.Equal(t, int64(1000+300+100), rep.Current.Totals.Expense.Minor)
}
