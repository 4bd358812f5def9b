// Package worker runs the background side of the service: it consumes ledger
// change events and drives the scheduled jobs.
package worker

import (
	"context"
	"fmt"

	"foretrack/internal/amqp"
	"foretrack/internal/log"
)

// Refresher regenerates a user's insights for a ledger revision.
// Implemented by *services.InsightService.
type Refresher interface {
	Refresh(ctx context.Context, userID string, revision int64) error
}

// EventWorker handles transaction-changed events from the queue.
type EventWorker struct {
	insights Refresher
	logger   *log.Logger
}

func NewEventWorker(insights Refresher, logger *log.Logger) *EventWorker {
	return &EventWorker{insights: insights, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleTransactionChanged refreshes the insights of the event's user at the
// event's revision. Stale events are dropped by the refresher; an error
// requeues the message.
func (w *EventWorker) HandleTransactionChanged(ctx context.Context, msg *amqp.TransactionChanged) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldUserID, msg.UserID,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldRevision, msg.Revision,
		"action", msg.Action)

	if err := w.insights.Refresh(ctx, msg.UserID, msg.Revision); err != nil {
		w.logger.ErrorContext(ctx, "Failed to refresh insights",
			log.FieldUserID, msg.UserID,
			log.FieldRevision, msg.Revision,
			log.FieldError, err)
		return fmt.Errorf("refresh insights: %w", err)
	}
	return nil
}
