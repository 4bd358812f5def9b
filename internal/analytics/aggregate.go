package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"foretrack/internal/core"
)

// TopCategoriesLimit caps the ranked category list.
const TopCategoriesLimit = 5

// Totals are the per-kind sums of a period.
type Totals struct {
	Expense     core.Money
	Income      core.Money
	Net         core.Money // may be negative
	SavingsRate float64    // percent of income kept; 0 when there is no income
}

// Summary is the reduction of one window's records.
type Summary struct {
	Window        Window
	Totals        Totals
	Categories    []Total // expense totals per category, first-seen order
	Sources       []Total // income totals per source, first-seen order
	Daily         []Total // expense totals per day, ascending date
	AverageDaily  core.Money
	TopCategories []Total
	ExpenseCount  int
	IncomeCount   int
}

// Partition splits records into those dated inside w and the rest. Every
// record lands in exactly one of the two slices, in input order.
func Partition(txs []core.Transaction, w Window) (in, out []core.Transaction) {
	for _, tx := range txs {
		if w.Contains(tx.Date) {
			in = append(in, tx)
		} else {
			out = append(out, tx)
		}
	}
	return in, out
}

// Aggregate reduces the records dated inside w. Amounts are summed in minor
// units; records are assumed to share one currency.
func Aggregate(txs []core.Transaction, w Window) Summary {
	in, _ := Partition(txs, w)

	categories := NewOrderedMap()
	sources := NewOrderedMap()
	daily := NewOrderedMap()
	s := Summary{Window: w}

	for _, tx := range in {
		switch tx.Kind {
		case core.Expense:
			s.Totals.Expense = s.Totals.Expense.Add(tx.Amount)
			s.ExpenseCount++
			categories.Add(tx.CategoryOrOther(), tx.Amount)
			daily.Add(tx.Date.String(), tx.Amount)
		case core.Income:
			s.Totals.Income = s.Totals.Income.Add(tx.Amount)
			s.IncomeCount++
			sources.Add(tx.CategoryOrOther(), tx.Amount)
		}
	}

	s.Totals.Net = s.Totals.Income.Sub(s.Totals.Expense)
	s.Totals.SavingsRate = SavingsRate(s.Totals.Net, s.Totals.Income)
	s.Categories = categories.Items()
	s.Sources = sources.Items()
	s.TopCategories = categories.Top(TopCategoriesLimit)
	s.AverageDaily = averageOf(daily)

	s.Daily = daily.Items()
	sort.SliceStable(s.Daily, func(i, j int) bool { return s.Daily[i].Name < s.Daily[j].Name })
	return s
}

// SavingsRate returns net / income × 100, or 0 when income is 0.
func SavingsRate(net, income core.Money) float64 {
	if income.Minor == 0 {
		return 0
	}
	return float64(net.Minor) / float64(income.Minor) * 100
}

// averageOf divides the summed per-day totals by the number of days present,
// rounding half-up to a whole minor unit. Days without expenses are absent
// from the map and so never lower the average.
func averageOf(daily *OrderedMap) core.Money {
	if daily.Len() == 0 {
		return core.Money{}
	}
	avg := decimal.NewFromInt(daily.Sum().Minor).
		Div(decimal.NewFromInt(int64(daily.Len()))).
		Round(0)
	return core.Money{Minor: avg.IntPart()}
}

// CategoryTotals sums expenses per category over w, keyed for budget lookups.
func CategoryTotals(txs []core.Transaction, w Window) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, tx := range txs {
		if tx.Kind != core.Expense || !w.Contains(tx.Date) {
			continue
		}
		key := tx.CategoryOrOther()
		out[key] = out[key].Add(tx.Amount)
	}
	return out
}
