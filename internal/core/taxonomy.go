package core

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code from the supported list.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	INR Currency = "INR"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	CHF Currency = "CHF"
	CNY Currency = "CNY"
	KRW Currency = "KRW"
	BRL Currency = "BRL"
	MXN Currency = "MXN"
	SGD Currency = "SGD"
	AED Currency = "AED"
	ZAR Currency = "ZAR"
)

// CurrencyInfo describes a supported currency.
type CurrencyInfo struct {
	Code     Currency `json:"code"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Exponent int      `json:"exponent"`
}

var currencies = []CurrencyInfo{
	{USD, "$", "US Dollar", 2},
	{EUR, "€", "Euro", 2},
	{GBP, "£", "British Pound", 2},
	{INR, "₹", "Indian Rupee", 2},
	{JPY, "¥", "Japanese Yen", 0},
	{CAD, "C$", "Canadian Dollar", 2},
	{AUD, "A$", "Australian Dollar", 2},
	{CHF, "CHF ", "Swiss Franc", 2},
	{CNY, "¥", "Chinese Yuan", 2},
	{KRW, "₩", "South Korean Won", 0},
	{BRL, "R$", "Brazilian Real", 2},
	{MXN, "$", "Mexican Peso", 2},
	{SGD, "S$", "Singapore Dollar", 2},
	{AED, "AED ", "UAE Dirham", 2},
	{ZAR, "R", "South African Rand", 2},
}

var currencyIndex = func() map[Currency]CurrencyInfo {
	m := make(map[Currency]CurrencyInfo, len(currencies))
	for _, c := range currencies {
		m[c.Code] = c
	}
	return m
}()

// Currencies lists the supported currencies in display order.
func Currencies() []CurrencyInfo {
	return append([]CurrencyInfo(nil), currencies...)
}

// ParseCurrency normalizes a code and checks it against the supported list.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Currency) Validate() error {
	if _, ok := currencyIndex[c]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
	}
	return nil
}

// Exponent is the number of minor-unit digits. Unknown codes use 2.
func (c Currency) Exponent() int {
	if info, ok := currencyIndex[c]; ok {
		return info.Exponent
	}
	return 2
}

// Symbol returns the display symbol, or the code followed by a space.
func (c Currency) Symbol() string {
	if info, ok := currencyIndex[c]; ok {
		return info.Symbol
	}
	return string(c) + " "
}

// Built-in expense categories with their display glyphs.
var expenseCategories = []Category{
	{Kind: Expense, Name: "Food", Icon: "🍔", Color: "Orange"},
	{Kind: Expense, Name: "Transport", Icon: "🚗", Color: "Blue"},
	{Kind: Expense, Name: "Entertainment", Icon: "🎬", Color: "Purple"},
	{Kind: Expense, Name: "Shopping", Icon: "🛍️", Color: "Pink"},
	{Kind: Expense, Name: "Bills", Icon: "📄", Color: "Red"},
	{Kind: Expense, Name: "Health", Icon: "💊", Color: "Green"},
	{Kind: Expense, Name: OtherCategory, Icon: "📦", Color: "Gray"},
}

// Built-in income sources.
var incomeSources = []Category{
	{Kind: Income, Name: "Salary", Icon: "💼", Color: "Green"},
	{Kind: Income, Name: "Freelance", Icon: "💻", Color: "Blue"},
	{Kind: Income, Name: "Business", Icon: "🏢", Color: "Purple"},
	{Kind: Income, Name: "Investments", Icon: "📈", Color: "Teal"},
	{Kind: Income, Name: "Rental", Icon: "🏠", Color: "Orange"},
	{Kind: Income, Name: "Gifts", Icon: "🎁", Color: "Pink"},
	{Kind: Income, Name: "Refunds", Icon: "↩️", Color: "Yellow"},
	{Kind: Income, Name: OtherCategory, Icon: "💰", Color: "Gray"},
}

// BuiltinCategories returns the closed list for a kind.
func BuiltinCategories(k Kind) []Category {
	if k == Income {
		return append([]Category(nil), incomeSources...)
	}
	return append([]Category(nil), expenseCategories...)
}

// ExpenseCategoryNames returns the built-in expense category names in order.
func ExpenseCategoryNames() []string {
	names := make([]string, 0, len(expenseCategories))
	for _, c := range expenseCategories {
		names = append(names, c.Name)
	}
	return names
}

// IsBuiltin reports whether name matches a built-in entry of kind k, ignoring case.
func IsBuiltin(k Kind, name string) bool {
	for _, c := range BuiltinCategories(k) {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
