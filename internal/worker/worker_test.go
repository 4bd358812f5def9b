package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foretrack/internal/amqp"
	"foretrack/internal/log"
)

type refreshCall struct {
	user     string
	revision int64
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, userID string, revision int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, refreshCall{userID, revision})
	return f.err
}

func TestEventWorker_HandleTransactionChanged(t *testing.T) {
	r := &fakeRefresher{}
	w := NewEventWorker(r, log.Discard())

	msg := amqp.NewTransactionChanged("u1", "tx-1", "expense", amqp.ActionCreated, 7)
	require.NoError(t, w.HandleTransactionChanged(context.Background(), msg))
	assert.Equal(t, []refreshCall{{"u1", 7}}, r.calls)

	r.err = errors.New("database locked")
	err := w.HandleTransactionChanged(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, r.err)
}

type countingRunner struct {
	mu   sync.Mutex
	runs []time.Time
	err  error
}

func (c *countingRunner) ProcessDue(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, now)
	return 1, c.err
}

func (c *countingRunner) SendWeekly(ctx context.Context, now time.Time) (int, error) {
	return c.ProcessDue(ctx, now)
}

func (c *countingRunner) Warm(ctx context.Context) error {
	_, err := c.ProcessDue(ctx, time.Time{})
	return err
}

func (c *countingRunner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

func TestScheduler_AddValidatesSpecs(t *testing.T) {
	s := NewScheduler(log.Discard())
	noop := func(context.Context, time.Time) error { return nil }

	require.NoError(t, s.Add("a", "@hourly", noop))
	require.NoError(t, s.Add("b", "0 8 * * 1", noop))
	require.NoError(t, s.Add("c", "@every 6h", noop))

	err := s.Add("a", "@daily", noop)
	assert.ErrorContains(t, err, "already registered")

	err = s.Add("d", "not a spec", noop)
	assert.ErrorContains(t, err, "schedule d 'not a spec'")
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(log.Discard())
	fixed := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	runner := &countingRunner{}
	require.NoError(t, Register(s, Schedules{Recurring: "@hourly", Summary: "0 8 * * 1", Rates: "@every 6h"}, runner, runner, runner))

	require.NoError(t, s.RunNow(context.Background(), JobRecurring))
	require.NoError(t, s.RunNow(context.Background(), JobSummary))
	require.NoError(t, s.RunNow(context.Background(), JobRates))
	assert.Equal(t, 3, runner.count())
	assert.Equal(t, fixed, runner.runs[0])

	assert.ErrorContains(t, s.RunNow(context.Background(), "missing"), "unknown job")

	runner.err = errors.New("boom")
	assert.ErrorIs(t, s.RunNow(context.Background(), JobRecurring), runner.err)
}

func TestRegister_SkipsNilComponents(t *testing.T) {
	s := NewScheduler(log.Discard())
	runner := &countingRunner{}
	require.NoError(t, Register(s, Schedules{Recurring: "@hourly"}, runner, nil, nil))

	assert.Len(t, s.cron.Entries(), 1)
	assert.ErrorContains(t, s.RunNow(context.Background(), JobSummary), "unknown job")
}

func TestRegister_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(log.Discard())
	err := Register(s, Schedules{Recurring: "every hour"}, &countingRunner{}, nil, nil)
	assert.ErrorContains(t, err, "schedule recurring")
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	s := NewScheduler(log.Discard())
	fired := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context, time.Time) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
}
