package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		cur Currency
		out int64
		ok  bool
	}{
		{"1", USD, 100, true},
		{"1.0", USD, 100, true},
		{"1.23", USD, 123, true},
		{"1,23", EUR, 123, true},
		{"0.01", USD, 1, true},
		{"1.005", USD, 101, true}, // half-up rounding
		{"1.004", USD, 100, true},
		{" 2.50 ", GBP, 250, true},
		{"1200", JPY, 1200, true},
		{"1200.5", JPY, 1201, true},
		{"1200.4", KRW, 1200, true},
		{"-1", USD, 0, false},
		{"+1", USD, 0, false},
		{"0", USD, 0, false},
		{"0.001", USD, 0, false},
		{"abc", USD, 0, false},
		{"1.2.3", USD, 0, false},
		{"", USD, 0, false},
	}
	for i, tc := range cases {
		got, err := ParseAmount(tc.in, tc.cur)
		if tc.ok {
			if err != nil || got.Minor != tc.out {
				t.Fatalf("case %d %q expected %d, got %d (err=%v)", i, tc.in, tc.out, got.Minor, err)
			}
		} else if err == nil {
			t.Fatalf("case %d %q expected error", i, tc.in)
		}
	}
}

func TestFromDecimal(t *testing.T) {
	m, err := FromDecimal(decimal.RequireFromString("19.999"), EUR)
	if err != nil || m.Minor != 2000 {
		t.Fatalf("expected 2000, got %d (err=%v)", m.Minor, err)
	}
	if m, err := FromDecimal(decimal.Zero, USD); err != nil || m.Minor != 0 {
		t.Fatalf("zero should be accepted, got %d (err=%v)", m.Minor, err)
	}
	if _, err := FromDecimal(decimal.NewFromInt(-5), USD); err == nil {
		t.Fatalf("expected error for negative decimal")
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		m    Money
		cur  Currency
		want string
	}{
		{Money{Minor: 1234}, USD, "$12.34"},
		{Money{Minor: 5}, EUR, "€0.05"},
		{Money{Minor: -350}, EUR, "-€3.50"},
		{Money{Minor: 1200}, JPY, "¥1200"},
		{Money{Minor: 0}, GBP, "£0.00"},
	}
	for i, tc := range cases {
		if got := tc.m.Display(tc.cur); got != tc.want {
			t.Fatalf("case %d expected %q, got %q", i, tc.want, got)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	d := Money{Minor: 12345}.Decimal(USD)
	if !d.Equal(decimal.RequireFromString("123.45")) {
		t.Fatalf("expected 123.45, got %s", d)
	}
	if got := (Money{Minor: 700}).Text(JPY); got != "700" {
		t.Fatalf("expected 700, got %s", got)
	}
}
