package services

import (
	"context"
	"fmt"
	"time"

	"foretrack/internal/analytics"
	"foretrack/internal/log"
	"foretrack/internal/ports"
)

// SummaryService emails the weekly report to users who opted in.
type SummaryService struct {
	settings  ports.SettingsStore
	analytics *AnalyticsService
	insights  *InsightService
	mailer    Mailer
	logger    *log.Logger
}

func NewSummaryService(settings ports.SettingsStore, a *AnalyticsService, in *InsightService, mailer Mailer, logger *log.Logger) *SummaryService {
	return &SummaryService{
		settings:  settings,
		analytics: a,
		insights:  in,
		mailer:    mailer,
		logger:    logger.WithComponent(log.ComponentNotify),
	}
}

// SendWeekly sends one summary per recipient and returns how many were sent.
// A failure for one recipient does not stop the others; degraded reports are
// not sent.
func (s *SummaryService) SendWeekly(ctx context.Context, now time.Time) (int, error) {
	if s.mailer == nil {
		return 0, nil
	}
	recipients, err := s.settings.ListSummaryRecipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list summary recipients: %w", err)
	}

	sent := 0
	for _, st := range recipients {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		rep := s.analytics.Report(ctx, st.UserID, analytics.Week, now)
		if rep.Degraded {
			s.logger.WarnContext(ctx, "Skipping summary for degraded report", log.FieldUserID, st.UserID)
			continue
		}
		narrative := s.insights.Narrate(ctx, rep)
		if err := s.mailer.SendWeeklySummary(ctx, st.Email, rep, narrative); err != nil {
			s.logger.ErrorContext(ctx, "Failed to send weekly summary", log.FieldUserID, st.UserID, log.FieldError, err)
			continue
		}
		sent++
	}
	s.logger.InfoContext(ctx, "Weekly summaries sent", "sent", sent, "recipients", len(recipients))
	return sent, nil
}
