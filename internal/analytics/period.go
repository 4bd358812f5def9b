// Package analytics reduces transaction records into period summaries,
// period-over-period changes and budget utilization. Every function here is a
// pure computation over already-fetched records.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"foretrack/internal/core"
)

// Range names a calendar-relative period ending today.
type Range string

const (
	Week    Range = "week"
	Month   Range = "month"
	Quarter Range = "quarter"
	Year    Range = "year"
)

// Ranges lists the accepted tokens in ascending length.
var Ranges = []Range{Week, Month, Quarter, Year}

// ParseRange validates a range token.
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case Week, Month, Quarter, Year:
		return r, nil
	default:
		return "", fmt.Errorf("invalid range %q: must be one of week, month, quarter, year", s)
	}
}

// RangeForPeriod maps a budget recurrence to the range that covers it.
func RangeForPeriod(p core.BudgetPeriod) Range {
	switch p {
	case core.Weekly:
		return Week
	case core.Quarterly:
		return Quarter
	case core.Yearly:
		return Year
	default:
		return Month
	}
}

// Window is a closed range of calendar dates. Both bounds are included.
type Window struct {
	Start core.Date
	End   core.Date
}

// Select maps a range token to the window ending on now's calendar date.
// The start uses calendar-aware subtraction, so a month back from March 31
// normalizes the same way time.AddDate does.
func Select(r Range, now time.Time) Window {
	var start time.Time
	switch r {
	case Week:
		start = now.AddDate(0, 0, -7)
	case Quarter:
		start = now.AddDate(0, -3, 0)
	case Year:
		start = now.AddDate(-1, 0, 0)
	default:
		start = now.AddDate(0, -1, 0)
	}
	return Window{Start: core.DateOf(start), End: core.DateOf(now)}
}

// Days returns end minus start in whole days.
func (w Window) Days() int {
	return w.Start.DaysUntil(w.End)
}

// Previous returns the window of identical length that ends the day before
// Start, i.e. the half-open [Start-(End-Start), Start).
func (w Window) Previous() Window {
	n := w.Days()
	return Window{
		Start: w.Start.AddDays(-n),
		End:   w.Start.AddDays(-1),
	}
}

// Span returns the smallest window covering both w and o.
func (w Window) Span(o Window) Window {
	out := w
	if o.Start.Before(out.Start.Time) {
		out.Start = o.Start
	}
	if o.End.After(out.End.Time) {
		out.End = o.End
	}
	return out
}

// Contains reports whether d lies within the window, bounds included.
func (w Window) Contains(d core.Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}
