package worker

import (
	"context"
	"time"
)

// Job names.
const (
	JobRecurring = "recurring"
	JobSummary   = "weekly-summary"
	JobRates     = "rates-warm"
)

// RecurringRunner is implemented by *services.RecurringProcessor.
type RecurringRunner interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// SummarySender is implemented by *services.SummaryService.
type SummarySender interface {
	SendWeekly(ctx context.Context, now time.Time) (int, error)
}

// RateWarmer is implemented by *rates.Converter.
type RateWarmer interface {
	Warm(ctx context.Context) error
}

// Schedules holds the cron spec of each job.
type Schedules struct {
	Recurring string
	Summary   string
	Rates     string
}

// Register adds the standard jobs. A nil component leaves its job out.
func Register(s *Scheduler, sch Schedules, recurring RecurringRunner, summary SummarySender, rates RateWarmer) error {
	if recurring != nil {
		err := s.Add(JobRecurring, sch.Recurring, func(ctx context.Context, now time.Time) error {
			_, err := recurring.ProcessDue(ctx, now)
			return err
		})
		if err != nil {
			return err
		}
	}
	if summary != nil {
		err := s.Add(JobSummary, sch.Summary, func(ctx context.Context, now time.Time) error {
			_, err := summary.SendWeekly(ctx, now)
			return err
		})
		if err != nil {
			return err
		}
	}
	if rates != nil {
		err := s.Add(JobRates, sch.Rates, func(ctx context.Context, _ time.Time) error {
			return rates.Warm(ctx)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
