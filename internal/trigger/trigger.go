// Package trigger adapts external change notifications into statuschange.ChangeEvent
// values and hands each one to a statuschange.Handler exactly once.
package trigger

import (
	"context"
	"time"

	"github.com/eternisai/status-notifier/internal/statuschange"
)

// OutcomeResponse is the JSON shape reported back to event publishers.
type OutcomeResponse struct {
	EventID   string `json:"event_id,omitempty"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newOutcomeResponse(eventID string, outcome statuschange.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		EventID:   eventID,
		Outcome:   string(outcome.Kind),
		Reason:    string(outcome.Reason),
		MessageID: outcome.MessageID,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	return resp
}

// handleWithTimeout bounds one invocation. An expired deadline surfaces as a failed outcome.
func handleWithTimeout(ctx context.Context, handler statuschange.Handler, timeout time.Duration, event statuschange.ChangeEvent) statuschange.Outcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return handler.Handle(ctx, event)
}
