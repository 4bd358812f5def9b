package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"foretrack/internal/log"
)

// JobFunc is one scheduled run. now is the UTC time the run was fired.
type JobFunc func(ctx context.Context, now time.Time) error

// Scheduler runs named jobs on standard cron specs in UTC. A job that is
// still running when its next tick fires is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
	now    func() time.Time

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]JobFunc
}

func NewScheduler(logger *log.Logger) *Scheduler {
	logger = logger.WithComponent(log.ComponentScheduler)
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		ctx:    context.Background(),
		jobs:   make(map[string]JobFunc),
	}
}

// Add registers fn under name. The spec is a five-field cron expression or a
// descriptor such as @hourly or @every 6h.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, fn) }); err != nil {
		return fmt.Errorf("schedule %s '%s': %w", name, spec, err)
	}
	s.jobs[name] = fn
	s.logger.Info("Job scheduled", "job", name, "spec", spec)
	return nil
}

// RunNow runs a registered job synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.invoke(ctx, name, fn)
}

// Start begins firing jobs. Runs receive ctx and stop being scheduled once
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the schedule and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) run(name string, fn JobFunc) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_ = s.invoke(ctx, name, fn)
}

func (s *Scheduler) invoke(ctx context.Context, name string, fn JobFunc) error {
	start := s.now()
	err := fn(ctx, start)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		s.logger.ErrorContext(ctx, "Job failed", "job", name, log.FieldDuration, elapsed, log.FieldError, err)
		return err
	}
	s.logger.InfoContext(ctx, "Job finished", "job", name, log.FieldDuration, elapsed)
	return nil
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, log.FieldError, err)...)
}
