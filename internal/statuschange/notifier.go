package statuschange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternisai/status-notifier/internal/logger"
)

// UserDirectory resolves the current state of a user record.
// Lookup returns ErrUserNotFound when the record does not exist.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (UserRecord, error)
}

// Notifier delivers a push notification and returns the transport's message ID.
type Notifier interface {
	Send(ctx context.Context, msg NotificationMessage) (string, error)
}

// Handler consumes change events. Trigger sources depend on this rather than on ChangeNotifier.
type Handler interface {
	Handle(ctx context.Context, event ChangeEvent) Outcome
}

// ChangeNotifier notifies a user when the status field of their record changes.
// It keeps no state between invocations and is safe for concurrent use.
type ChangeNotifier struct {
	directory UserDirectory
	notifier  Notifier
	logger    *logger.Logger
}

// NewChangeNotifier creates a ChangeNotifier.
func NewChangeNotifier(directory UserDirectory, notifier Notifier, logger *logger.Logger) *ChangeNotifier {
	return &ChangeNotifier{
		directory: directory,
		notifier:  notifier,
		logger:    logger,
	}
}

// Handle runs filter, lookup, construct and dispatch for one event.
// The delivery target is always re-read from the directory; event.After's token may be stale.
func (n *ChangeNotifier) Handle(ctx context.Context, event ChangeEvent) Outcome {
	start := time.Now()

	ctx = logger.WithChangeEvent(ctx, event.UserID, event.ID)

	outcome := n.handle(ctx, event)
	observeOutcome(outcome, time.Since(start))
	n.logOutcome(ctx, event, outcome)

	return outcome
}

func (n *ChangeNotifier) handle(ctx context.Context, event ChangeEvent) Outcome {
	newStatus := event.After.Status()
	if newStatus.Equal(event.Before.Status()) {
		return Skipped(ReasonStatusUnchanged)
	}

	current, err := n.directory.Lookup(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Skipped(ReasonUserNotFound)
		}
		return Failed(fmt.Errorf("failed to look up user %s: %w", event.UserID, err))
	}

	target, ok := current.DeliveryTarget()
	if !ok {
		return Skipped(ReasonMissingTarget)
	}

	msg := NewStatusUpdateMessage(newStatus, target)

	messageID, err := n.notifier.Send(ctx, msg)
	if err != nil {
		return Failed(fmt.Errorf("failed to send status notification: %w", err))
	}

	return Delivered(messageID)
}

func (n *ChangeNotifier) logOutcome(ctx context.Context, event ChangeEvent, outcome Outcome) {
	log := n.logger.WithContext(ctx).WithComponent("change-notifier")

	attrs := []any{
		slog.String("source", string(event.Source)),
		slog.String("outcome", string(outcome.Kind)),
	}

	switch outcome.Kind {
	case OutcomeSkipped:
		log.Debug("status notification skipped", append(attrs, slog.String("reason", string(outcome.Reason)))...)
	case OutcomeDelivered:
		log.Info("status notification delivered",
			append(attrs,
				slog.String("status", event.After.Status().String()),
				slog.String("message_id", outcome.MessageID))...)
	case OutcomeFailed:
		log.Error("status notification failed", append(attrs, slog.String("error", outcome.Err.Error()))...)
	}
}
