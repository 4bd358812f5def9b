package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
	"foretrack/internal/log"
)

// AnalyticsStore is the read side AnalyticsService fetches from.
type AnalyticsStore interface {
	ListTransactions(ctx context.Context, userID string, from, to core.Date) ([]core.Transaction, error)
	ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]core.Budget, error)
}

// Report is everything the dashboard shows for one range. A degraded report
// has empty totals because its data could not be fetched.
type Report struct {
	Range    analytics.Range
	Currency core.Currency
	Current  analytics.Summary
	Previous analytics.Summary
	Changes  analytics.Changes
	Budgets  []analytics.BudgetStatus
	Overall  analytics.OverallStatus
	Degraded bool

	// Records are the current window's transactions in Currency, newest first.
	Records []core.Transaction
}

type AnalyticsService struct {
	store     AnalyticsStore
	settings  *SettingsService
	converter Converter
	logger    *log.Logger
}

// NewAnalyticsService builds the service. converter may be nil, in which
// case records are assumed to be in the user's currency.
func NewAnalyticsService(store AnalyticsStore, settings *SettingsService, converter Converter, logger *log.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:     store,
		settings:  settings,
		converter: converter,
		logger:    logger.WithComponent(log.ComponentAnalytics),
	}
}

// Report fetches the records of the previous and current windows together
// with the active budgets, then aggregates them. Fetch failures are logged
// and produce a degraded report instead of an error.
func (s *AnalyticsService) Report(ctx context.Context, userID string, r analytics.Range, now time.Time) Report {
	cur := analytics.Select(r, now)
	prev := cur.Previous()
	// Budgets are measured over their own period, up to a year back.
	fetch := prev.Span(cur).Span(analytics.Select(analytics.Year, now))

	var (
		txs      []core.Transaction
		budgets  []core.Budget
		settings core.Settings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID, fetch.Start, fetch.End)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.store.ListBudgets(gctx, userID, true)
		return err
	})
	g.Go(func() error {
		var err error
		settings, err = s.settings.Get(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Analytics fetch failed, serving degraded report",
			log.FieldUserID, userID,
			log.FieldRange, string(r),
			log.FieldError, err)
		base := settings.Currency
		if base == "" {
			// The settings fetch may have been cancelled by the failed one.
			if st, err := s.settings.Get(ctx, userID); err == nil {
				base = st.Currency
			} else {
				base = core.DefaultSettings(userID).Currency
			}
		}
		return degradedReport(r, base, cur, prev)
	}

	base := settings.Currency
	txs = s.normalize(ctx, txs, base)
	budgets = s.normalizeBudgets(ctx, budgets, base)

	rep := Report{
		Range:    r,
		Currency: base,
		Current:  analytics.Aggregate(txs, cur),
		Previous: analytics.Aggregate(txs, prev),
		Budgets:  budgetStatuses(budgets, txs, now),
	}
	rep.Changes = analytics.Compare(rep.Current.Totals, rep.Previous.Totals)
	rep.Overall = analytics.Overall(rep.Current.Totals.Expense, budgets)
	rep.Records, _ = analytics.Partition(txs, cur)
	return rep
}

func degradedReport(r analytics.Range, base core.Currency, cur, prev analytics.Window) Report {
	return Report{
		Range:    r,
		Currency: base,
		Current:  analytics.Summary{Window: cur},
		Previous: analytics.Summary{Window: prev},
		Budgets:  []analytics.BudgetStatus{},
		Degraded: true,
	}
}

// budgetStatuses measures each active budget over the window of its own
// period ending today.
func budgetStatuses(budgets []core.Budget, txs []core.Transaction, now time.Time) []analytics.BudgetStatus {
	spentBy := make(map[core.BudgetPeriod]map[string]core.Money)
	out := make([]analytics.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		if !b.Active {
			continue
		}
		w := analytics.Select(analytics.RangeForPeriod(b.Period), now)
		spent, ok := spentBy[b.Period]
		if !ok {
			spent = categoryTotals(analytics.Aggregate(txs, w))
			spentBy[b.Period] = spent
		}
		st := analytics.Utilize([]core.Budget{b}, spent)[0]
		st.Window = w
		out = append(out, st)
	}
	return out
}

func categoryTotals(s analytics.Summary) map[string]core.Money {
	m := make(map[string]core.Money, len(s.Categories))
	for _, c := range s.Categories {
		m[c.Name] = c.Amount
	}
	return m
}

// normalize converts foreign records into base. A record that cannot be
// converted keeps its original amount.
func (s *AnalyticsService) normalize(ctx context.Context, txs []core.Transaction, base core.Currency) []core.Transaction {
	if s.converter == nil {
		return txs
	}
	failed := make(map[core.Currency]bool)
	for i, tx := range txs {
		if tx.Currency == base || tx.Currency == "" || failed[tx.Currency] {
			continue
		}
		m, err := s.converter.Convert(ctx, tx.Amount, tx.Currency, base)
		if err != nil {
			failed[tx.Currency] = true
			s.logger.WarnContext(ctx, "Keeping unconverted amounts",
				"from", string(tx.Currency),
				"to", string(base),
				log.FieldError, err)
			continue
		}
		txs[i].Amount = m
		txs[i].Currency = base
	}
	return txs
}

func (s *AnalyticsService) normalizeBudgets(ctx context.Context, budgets []core.Budget, base core.Currency) []core.Budget {
	if s.converter == nil {
		return budgets
	}
	for i, b := range budgets {
		if b.Currency == base || b.Currency == "" {
			continue
		}
		m, err := s.converter.Convert(ctx, b.Limit, b.Currency, base)
		if err != nil {
			continue
		}
		budgets[i].Limit = m
		budgets[i].Currency = base
	}
	return budgets
}
