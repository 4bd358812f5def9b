package analytics

import (
	"fmt"
	"sort"
	"strings"

	"foretrack/internal/core"
)

// SortOrder orders a ledger listing.
type SortOrder string

const (
	DateDesc   SortOrder = "date-desc"
	DateAsc    SortOrder = "date-asc"
	AmountDesc SortOrder = "amount-desc"
	AmountAsc  SortOrder = "amount-asc"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ParseSortOrder validates a sort token; empty means DateDesc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.TrimSpace(s)); o {
	case "":
		return DateDesc, nil
	case DateDesc, DateAsc, AmountDesc, AmountAsc:
		return o, nil
	default:
		return "", fmt.Errorf("invalid sort %q", s)
	}
}

// Filter narrows a ledger listing. Zero fields match everything.
type Filter struct {
	Kind  core.Kind
	Query string
	From  core.Date
	To    core.Date
}

// Match reports whether tx passes the filter. Query matches note and
// category case-insensitively.
func (f Filter) Match(tx core.Transaction) bool {
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To.Time) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(tx.Note), q) &&
			!strings.Contains(strings.ToLower(tx.Category), q) {
			return false
		}
	}
	return true
}

// CurrencyTotals sums the records of one currency.
type CurrencyTotals struct {
	Currency core.Currency
	Income   core.Money
	Expense  core.Money
	Net      core.Money
}

// Page is one page of a filtered, sorted listing plus totals over the whole
// filtered set. Amounts of different currencies are never added together:
// Totals holds one entry per currency, in first-seen order.
type Page struct {
	Items      []core.Transaction
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	Totals     []CurrencyTotals
}

// TotalsFor returns the totals of cur, zero when no record used it.
func (p Page) TotalsFor(cur core.Currency) CurrencyTotals {
	for _, t := range p.Totals {
		if t.Currency == cur {
			return t
		}
	}
	return CurrencyTotals{Currency: cur}
}

// Ledger filters, sorts and paginates transactions. Page numbers start at 1.
func Ledger(txs []core.Transaction, f Filter, order SortOrder, page, perPage int) Page {
	matched := make([]core.Transaction, 0, len(txs))
	totals := []CurrencyTotals{}
	slot := make(map[core.Currency]int)
	for _, tx := range txs {
		if !f.Match(tx) {
			continue
		}
		matched = append(matched, tx)
		i, ok := slot[tx.Currency]
		if !ok {
			i = len(totals)
			slot[tx.Currency] = i
			totals = append(totals, CurrencyTotals{Currency: tx.Currency})
		}
		t := &totals[i]
		if tx.Kind == core.Income {
			t.Income = t.Income.Add(tx.Amount)
		} else {
			t.Expense = t.Expense.Add(tx.Amount)
		}
		t.Net = t.Income.Sub(t.Expense)
	}
	SortTransactions(matched, order)

	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page < 1 {
		page = 1
	}
	totalPages := (len(matched) + perPage - 1) / perPage
	lo := (page - 1) * perPage
	hi := lo + perPage
	if lo > len(matched) {
		lo = len(matched)
	}
	if hi > len(matched) {
		hi = len(matched)
	}
	return Page{
		Items:      matched[lo:hi],
		Page:       page,
		PerPage:    perPage,
		TotalItems: len(matched),
		TotalPages: totalPages,
		Totals:     totals,
	}
}

// SortTransactions sorts in place. Date orders break ties on creation time;
// all orders are stable.
func SortTransactions(txs []core.Transaction, order SortOrder) {
	var less func(a, b core.Transaction) bool
	switch order {
	case DateAsc:
		less = func(a, b core.Transaction) bool {
			if a.Date.Equal(b.Date.Time) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.Date.Before(b.Date.Time)
		}
	case AmountDesc:
		less = func(a, b core.Transaction) bool { return a.Amount.Minor > b.Amount.Minor }
	case AmountAsc:
		less = func(a, b core.Transaction) bool { return a.Amount.Minor < b.Amount.Minor }
	default:
		less = func(a, b core.Transaction) bool {
			if a.Date.Equal(b.Date.Time) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.Date.After(b.Date.Time)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool { return less(txs[i], txs[j]) })
}
