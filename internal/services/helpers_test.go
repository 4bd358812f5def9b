package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"foretrack/internal/amqp"
	"foretrack/internal/core"
	"foretrack/internal/log"
	"foretrack/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.TransactionChanged
	err  error
}

func (p *recordingPublisher) PublishTransactionChanged(_ context.Context, msg *amqp.TransactionChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) messages() []*amqp.TransactionChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.TransactionChanged(nil), p.msgs...)
}

type countingModel struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (m *countingModel) Generate(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

func (m *countingModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// brokenStore fails every transaction listing.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) ListTransactions(context.Context, string, core.Date, core.Date) ([]core.Transaction, error) {
	return nil, errors.New("database is on fire")
}

// revisionlessStore cannot read revisions.
type revisionlessStore struct {
	*memory.Store
}

func (revisionlessStore) Revision(context.Context, string) (int64, error) {
	return 0, errors.New("revisions unavailable")
}

// stuckRevisionStore saves writes but cannot bump revisions.
type stuckRevisionStore struct {
	*memory.Store
}

func (stuckRevisionStore) BumpRevision(context.Context, string) (int64, error) {
	return 0, errors.New("revisions unavailable")
}

// doublingConverter converts EUR to USD at 2.0 and fails for anything else.
type doublingConverter struct{}

func (doublingConverter) Convert(_ context.Context, m core.Money, from, to core.Currency) (core.Money, error) {
	if from == core.EUR && to == core.USD {
		return core.Money{Minor: m.Minor * 2}, nil
	}
	return core.Money{}, errors.New("unsupported")
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	tx        *TransactionService
	budgets   *BudgetService
	settings  *SettingsService
	analytics *AnalyticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	f := &fixture{
		store:     store,
		publisher: pub,
		tx:        NewTransactionService(store, pub, log.Discard()),
		budgets:   NewBudgetService(store, log.Discard()),
		settings:  NewSettingsService(store),
	}
	f.tx.now = fixedClock
	f.budgets.now = fixedClock
	f.analytics = NewAnalyticsService(store, f.settings, nil, log.Discard())
	t.Cleanup(func() { _ = f.tx.Close() })
	return f
}

func (f *fixture) add(t *testing.T, user string, kind core.Kind, category string, minor int64, on core.Date) core.Transaction {
	t.Helper()
	tx, err := f.tx.Create(context.Background(), user, core.Transaction{
		Kind:     kind,
		Amount:   core.Money{Minor: minor},
		Currency: core.USD,
		Category: category,
		Date:     on,
	})
	if err != nil {
		t.Fatalf("create %s: %v", kind, err)
	}
	return tx
}

func (f *fixture) budget(t *testing.T, user, category string, period core.BudgetPeriod, limit int64) core.Budget {
	t.Helper()
	b, err := f.budgets.Create(context.Background(), user, core.Budget{
		Category: category,
		Limit:    core.Money{Minor: limit},
		Currency: core.USD,
		Period:   period,
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return b
}
