package analytics

import (
	"sort"

	"foretrack/internal/core"
)

// Total is a labelled money amount.
type Total struct {
	Name   string
	Amount core.Money
}

// OrderedMap accumulates totals per key and remembers first-insertion order,
// so iteration and ranking are reproducible.
type OrderedMap struct {
	index map[string]int
	items []Total
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{index: make(map[string]int)}
}

// Add accumulates amount under key.
func (m *OrderedMap) Add(key string, amount core.Money) {
	if i, ok := m.index[key]; ok {
		m.items[i].Amount = m.items[i].Amount.Add(amount)
		return
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, Total{Name: key, Amount: amount})
}

// Get returns the total for key.
func (m *OrderedMap) Get(key string) (core.Money, bool) {
	i, ok := m.index[key]
	if !ok {
		return core.Money{}, false
	}
	return m.items[i].Amount, true
}

func (m *OrderedMap) Len() int {
	return len(m.items)
}

// Items returns a copy of the entries in insertion order.
func (m *OrderedMap) Items() []Total {
	return append([]Total(nil), m.items...)
}

// Sum adds every entry.
func (m *OrderedMap) Sum() core.Money {
	var s core.Money
	for _, it := range m.items {
		s = s.Add(it.Amount)
	}
	return s
}

// Top returns at most n entries ranked by descending amount. Equal amounts
// keep insertion order.
func (m *OrderedMap) Top(n int) []Total {
	ranked := m.Items()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount.Minor > ranked[j].Amount.Minor
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
