package analytics

import "foretrack/internal/core"

// Changes holds signed percentage deltas against the previous period. A
// positive expense change is unfavorable; a positive income change is
// favorable. Callers own that framing.
type Changes struct {
	Expense float64
	Income  float64
}

// PercentChange returns (cur - prev) / prev × 100, or 0 when prev is 0.
func PercentChange(cur, prev core.Money) float64 {
	if prev.Minor == 0 {
		return 0
	}
	return float64(cur.Minor-prev.Minor) / float64(prev.Minor) * 100
}

// Compare computes expense and income changes between two periods.
func Compare(cur, prev Totals) Changes {
	return Changes{
		Expense: PercentChange(cur.Expense, prev.Expense),
		Income:  PercentChange(cur.Income, prev.Income),
	}
}
