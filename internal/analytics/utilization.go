package analytics

import "foretrack/internal/core"

// Band classifies a utilization percentage for display.
type Band string

const (
	BandUnder Band = "under" // ≤ 80%
	BandNear  Band = "near"  // > 80% and ≤ 100%
	BandOver  Band = "over"  // > 100%
)

// BandFor classifies a utilization percentage.
func BandFor(percent float64) Band {
	switch {
	case percent > 100:
		return BandOver
	case percent > 80:
		return BandNear
	default:
		return BandUnder
	}
}

// BudgetStatus is one budget's spending against its limit.
type BudgetStatus struct {
	Budget    core.Budget
	Window    Window
	Spent     core.Money
	Remaining core.Money // negative when over the limit
	Percent   float64
	Band      Band
}

// Utilization returns spent / limit × 100, or 0 when the limit is 0.
func Utilization(spent, limit core.Money) float64 {
	if limit.Minor == 0 {
		return 0
	}
	return float64(spent.Minor) / float64(limit.Minor) * 100
}

// Status computes a single budget's utilization from the spent amount.
func Status(b core.Budget, spent core.Money) BudgetStatus {
	pct := Utilization(spent, b.Limit)
	return BudgetStatus{
		Budget:    b,
		Spent:     spent,
		Remaining: b.Limit.Sub(spent),
		Percent:   pct,
		Band:      BandFor(pct),
	}
}

// Utilize pairs each active budget with its category's spending. Inactive
// budgets are skipped; categories without spending count as zero.
func Utilize(budgets []core.Budget, spent map[string]core.Money) []BudgetStatus {
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		if !b.Active {
			continue
		}
		out = append(out, Status(b, spent[b.Category]))
	}
	return out
}

// OverallStatus compares all spending against the sum of active limits.
type OverallStatus struct {
	Limit   core.Money
	Spent   core.Money
	Percent float64
	Band    Band
}

// Overall computes total expense against the summed active budget limits.
func Overall(totalExpense core.Money, budgets []core.Budget) OverallStatus {
	var limit core.Money
	for _, b := range budgets {
		if b.Active {
			limit = limit.Add(b.Limit)
		}
	}
	pct := Utilization(totalExpense, limit)
	return OverallStatus{Limit: limit, Spent: totalExpense, Percent: pct, Band: BandFor(pct)}
}
