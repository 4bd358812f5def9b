// Package core provides money parsing and handling utilities.
//
// Amounts are held as int64 minor units of their currency. Parsing and
// formatting go through shopspring/decimal so that no float ever touches a
// stored amount.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Minor int64
}

func (m Money) Validate() error {
	if m.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Minor: m.Minor + o.Minor}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Minor: m.Minor - o.Minor}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Minor == 0
}

// ParseAmount converts a decimal string to minor units of the given currency.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up past the currency's exponent. Negative, zero and malformed values
// return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34", USD)  -> 1234
//	ParseAmount("12,345", USD) -> 1235
//	ParseAmount("1200.4", JPY) -> 1200
func ParseAmount(s string, cur Currency) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m, err := FromDecimal(d, cur)
	if err != nil {
		return Money{}, err
	}
	if m.Minor <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// FromDecimal converts a major-unit decimal to minor units, rounding half-up.
// Negative values are rejected; zero is allowed.
func FromDecimal(d decimal.Decimal, cur Currency) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	exp := int32(cur.Exponent())
	minor := d.Shift(exp).Round(0)
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(maxMinor)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Minor: minor.IntPart()}, nil
}

// maxMinor keeps sums of many amounts away from int64 overflow.
const maxMinor = 1 << 53

// Decimal returns the amount in major units of cur.
func (m Money) Decimal(cur Currency) decimal.Decimal {
	return decimal.New(m.Minor, -int32(cur.Exponent()))
}

// Text renders the amount in major units without a symbol, e.g. "12.34".
func (m Money) Text(cur Currency) string {
	return m.Decimal(cur).StringFixed(int32(cur.Exponent()))
}

// Display renders the amount with the currency symbol, e.g. "$12.34" or "-€3.50".
func (m Money) Display(cur Currency) string {
	sym := cur.Symbol()
	if m.Minor < 0 {
		return "-" + sym + Money{Minor: -m.Minor}.Text(cur)
	}
	return sym + m.Text(cur)
}
