package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
	"foretrack/internal/inference"
	"foretrack/internal/insights"
	"foretrack/internal/log"
)

const foodInsight = "```json\n" +
	`[{"type":"warning","title":"Food is up","message":"You spent more on food this month.","icon":"🍔"},` +
	`{"type":"bogus","title":"","message":"dropped"}]` +
	"\n```"

func newInsightService(f *fixture, model inference.Generator) *InsightService {
	s := NewInsightService(f.analytics, f.store, model, NewInsightCache(16, time.Hour), log.Discard())
	s.now = fixedClock
	return s
}

func TestInsightService_GeneratesCachesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	model := &countingModel{text: foodInsight}
	svc := newInsightService(f, model)

	items := svc.Insights(ctx, "u1")
	require.Len(t, items, 1)
	assert.Equal(t, insights.Warning, items[0].Type)
	assert.Equal(t, "Food is up", items[0].Title)
	assert.Equal(t, 1, model.Calls())

	assert.Equal(t, items, svc.Insights(ctx, "u1"))
	assert.Equal(t, 1, model.Calls(), "second call is served from cache")

	snap, err := f.store.LoadSnapshot(ctx, "u1", InsightScope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Revision)

	// A fresh process serves the stored snapshot without asking the model.
	other := &countingModel{text: foodInsight}
	restarted := newInsightService(f, other)
	assert.Equal(t, items, restarted.Insights(ctx, "u1"))
	assert.Zero(t, other.Calls())

	// A new write invalidates both.
	f.add(t, "u1", core.Expense, "Food", 100, core.NewDate(2025, 3, 11))
	svc.Insights(ctx, "u1")
	assert.Equal(t, 2, model.Calls())
}

func TestInsightService_FallbackIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	model := &countingModel{err: errors.New("quota exceeded")}
	svc := newInsightService(f, model)

	assert.Equal(t, []insights.Insight{insights.Fallback}, svc.Insights(ctx, "u1"))
	_, err := f.store.LoadSnapshot(ctx, "u1", InsightScope)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	svc.Insights(ctx, "u1")
	assert.Equal(t, 2, model.Calls(), "fallbacks are not cached")

	model.text, model.err = "not json at all", nil
	assert.Equal(t, []insights.Insight{insights.Fallback}, svc.Insights(ctx, "u1"))
}

func TestInsightService_StartTrackingWithoutExpenses(t *testing.T) {
	f := newFixture(t)
	f.add(t, "u1", core.Income, "Salary", 100000, core.NewDate(2025, 3, 1))

	model := &countingModel{text: foodInsight}
	svc := newInsightService(f, model)

	assert.Equal(t, []insights.Insight{insights.StartTracking}, svc.Insights(context.Background(), "u1"))
	assert.Zero(t, model.Calls())
}

func TestInsightService_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))
	f.add(t, "u1", core.Expense, "Bills", 9000, core.NewDate(2025, 3, 12))

	model := &countingModel{text: foodInsight}
	svc := newInsightService(f, model)

	require.NoError(t, svc.Refresh(ctx, "u1", 1))
	assert.Zero(t, model.Calls(), "stale revision is ignored")

	require.NoError(t, svc.Refresh(ctx, "u1", 2))
	assert.Equal(t, 1, model.Calls())
	snap, err := f.store.LoadSnapshot(ctx, "u1", InsightScope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Revision)

	require.NoError(t, svc.Refresh(ctx, "u1", 2))
	assert.Equal(t, 1, model.Calls(), "snapshot already covers the revision")

	svc.Insights(ctx, "u1")
	assert.Equal(t, 1, model.Calls())
}

func TestInsightService_BudgetAndSettingsWritesInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	model := &countingModel{text: foodInsight}
	svc := newInsightService(f, model)
	svc.Insights(ctx, "u1")
	require.Equal(t, 1, model.Calls())

	b := f.budget(t, "u1", "Food", core.Monthly, 10000)
	svc.Insights(ctx, "u1")
	assert.Equal(t, 2, model.Calls(), "new budget")

	b.Limit = core.Money{Minor: 20000}
	_, err := f.budgets.Update(ctx, "u1", b)
	require.NoError(t, err)
	svc.Insights(ctx, "u1")
	assert.Equal(t, 3, model.Calls(), "updated budget")

	require.NoError(t, f.budgets.Delete(ctx, "u1", b.ID))
	svc.Insights(ctx, "u1")
	assert.Equal(t, 4, model.Calls(), "deleted budget")

	_, err = f.settings.Put(ctx, "u1", core.Settings{Currency: core.EUR})
	require.NoError(t, err)
	svc.Insights(ctx, "u1")
	assert.Equal(t, 5, model.Calls(), "new base currency")

	svc.Insights(ctx, "u1")
	assert.Equal(t, 5, model.Calls())
}

func TestInsightService_ResultsExpireWithTheDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	model := &countingModel{text: foodInsight}
	svc := newInsightService(f, model)
	svc.Insights(ctx, "u1")
	require.Equal(t, 1, model.Calls())

	svc.now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	require.Len(t, svc.Insights(ctx, "u1"), 1)
	assert.Equal(t, 2, model.Calls(), "yesterday's cache entry is not served")

	// Months later the window is empty; the stored snapshot must not be served.
	other := &countingModel{text: foodInsight}
	later := newInsightService(f, other)
	later.now = func() time.Time { return testNow.AddDate(0, 0, 90) }
	assert.Equal(t, []insights.Insight{insights.StartTracking}, later.Insights(ctx, "u1"))
	assert.Zero(t, other.Calls())
}

func TestInsightService_RevisionLookupFailureDoesNotPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	model := &countingModel{text: foodInsight}
	c := NewInsightCache(16, time.Hour)
	svc := NewInsightService(f.analytics, revisionlessStore{f.store}, model, c, log.Discard())
	svc.now = fixedClock

	require.Len(t, svc.Insights(ctx, "u1"), 1)
	assert.Equal(t, 1, model.Calls())

	_, ok := c.Get("u1")
	assert.False(t, ok, "nothing cached")
	_, err := f.store.LoadSnapshot(ctx, "u1", InsightScope)
	assert.True(t, errors.Is(err, core.ErrNotFound), "nothing persisted")
}

func TestInsightService_FailedRevisionBumpInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	model := &countingModel{text: foodInsight}
	svc := newInsightService(f, model)
	svc.Insights(ctx, "u1")
	require.Equal(t, 1, model.Calls())

	stuck := NewTransactionService(stuckRevisionStore{f.store}, nil, log.Discard())
	t.Cleanup(func() { _ = stuck.Close() })
	stuck.NotifyStale(svc)
	_, err := stuck.Create(ctx, "u1", core.Transaction{
		Kind: core.Expense, Amount: core.Money{Minor: 900}, Currency: core.USD,
		Category: "Bills", Date: core.NewDate(2025, 3, 12),
	})
	require.NoError(t, err, "the write itself succeeds")

	rev, err := f.store.Revision(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	svc.Insights(ctx, "u1")
	assert.Equal(t, 2, model.Calls(), "neither cache nor snapshot is served")

	svc.Insights(ctx, "u1")
	assert.Equal(t, 2, model.Calls(), "the regenerated result is served again")
}

func TestInsightService_Chat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))

	tests := []struct {
		name    string
		model   inference.Generator
		message string
		want    string
		invalid bool
	}{
		{"answer", inference.Static{Text: "  Spend less on food.  "}, "How am I doing?", "Spend less on food.", false},
		{"model error", inference.Static{Err: errors.New("boom")}, "How am I doing?", insights.ChatErrorReply, false},
		{"empty answer", inference.Static{Text: "   "}, "How am I doing?", insights.ChatEmptyReply, false},
		{"disabled", inference.Disabled{}, "How am I doing?", insights.ChatErrorReply, false},
		{"empty message", inference.Static{Text: "x"}, " <> ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := newInsightService(f, tt.model).Chat(ctx, "u1", tt.message)
			if tt.invalid {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestInsightService_Categorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := newInsightService(f, inference.Static{Text: "**transport**"}).Categorize(ctx, "Uber ride", "12.50")
	require.NoError(t, err)
	assert.Equal(t, "Transport", got)

	got, err = newInsightService(f, inference.Static{Text: "Groceries"}).Categorize(ctx, "Milk", "")
	require.NoError(t, err)
	assert.Equal(t, core.OtherCategory, got)

	got, err = newInsightService(f, inference.Disabled{}).Categorize(ctx, "Milk", "")
	require.NoError(t, err)
	assert.Equal(t, core.OtherCategory, got)

	_, err = newInsightService(f, inference.Disabled{}).Categorize(ctx, "", "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestInsightService_SavingsTipsAndAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	svc := newInsightService(f, inference.Static{Text: `["Cook at home", "Walk more"]`})
	assert.Equal(t, insights.FallbackTips, svc.SavingsTips(ctx, "u1"))
	assert.Equal(t, insights.AnalysisFallback, svc.Analysis(ctx, "u1", analytics.Month))

	f.add(t, "u1", core.Expense, "Food", 4200, core.NewDate(2025, 3, 10))
	assert.Equal(t, []string{"Cook at home", "Walk more"}, svc.SavingsTips(ctx, "u1"))

	broken := newInsightService(f, inference.Static{Text: "no tips today"})
	assert.Equal(t, insights.FallbackTips, broken.SavingsTips(ctx, "u1"))

	narrator := newInsightService(f, inference.Static{Text: "Food is your largest expense."})
	assert.Equal(t, "Food is your largest expense.", narrator.Analysis(ctx, "u1", analytics.Month))
}
