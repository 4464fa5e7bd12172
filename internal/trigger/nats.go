package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/eternisai/status-notifier/internal/statuschange"
	"github.com/nats-io/nats.go"
)

// NATSEvent is the JSON payload of a user change published on NATS.
type NATSEvent struct {
	EventID string                 `json:"event_id"`
	UserID  string                 `json:"user_id"`
	Before  map[string]interface{} `json:"before"`
	After   map[string]interface{} `json:"after"`
}

// NATSSubscriber consumes user change events from a NATS subject.
//
// It joins a queue group so that with several replicas each published event
// is handled by one instance only. Requests carrying a reply subject receive
// the outcome as OutcomeResponse JSON.
type NATSSubscriber struct {
	nc           *nats.Conn
	subject      string
	queue        string
	handler      statuschange.Handler
	timeout      time.Duration
	logger       *logger.Logger
	subscription *nats.Subscription

	closed    chan struct{}
	closeOnce sync.Once
}

// NewNATSSubscriber creates a subscriber. Returns nil if the NATS connection is not available.
func NewNATSSubscriber(nc *nats.Conn, subject, queue string, handler statuschange.Handler, timeout time.Duration, logger *logger.Logger) *NATSSubscriber {
	if nc == nil {
		return nil
	}

	s := &NATSSubscriber{
		nc:      nc,
		subject: subject,
		queue:   queue,
		handler: handler,
		timeout: timeout,
		logger:  logger.WithComponent("nats-trigger"),
		closed:  make(chan struct{}),
	}
	nc.SetClosedHandler(func(*nats.Conn) { s.markClosed() })

	return s
}

// Start begins consuming events.
func (s *NATSSubscriber) Start() error {
	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, s.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.subscription = sub
	s.logger.Info("nats trigger started",
		slog.String("subject", s.subject),
		slog.String("queue", s.queue))

	return nil
}

// Stop drains the connection and blocks until every in-flight event has
// been handled and the connection is closed, or until ctx is done.
// The subscriber owns the connection from NewNATSSubscriber on.
func (s *NATSSubscriber) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if err := s.nc.Drain(); err != nil {
		if !errors.Is(err, nats.ErrConnectionClosed) {
			return fmt.Errorf("failed to drain connection: %w", err)
		}
		s.markClosed()
	}

	if err := s.awaitClosed(ctx); err != nil {
		return fmt.Errorf("nats drain did not finish: %w", err)
	}

	s.logger.Info("nats trigger stopped")
	return nil
}

func (s *NATSSubscriber) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *NATSSubscriber) awaitClosed(ctx context.Context) error {
	select {
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *NATSSubscriber) handleMessage(msg *nats.Msg) {
	event, err := decodeNATSEvent(msg.Data)
	if err != nil {
		s.logger.Warn("received invalid change event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()))
		s.reply(msg, OutcomeResponse{Outcome: "rejected", Error: err.Error()})
		return
	}

	if event.ID == "" {
		event.ID = logger.GenerateRequestID()
	}

	ctx := logger.WithRequestID(context.Background(), event.ID)
	outcome := handleWithTimeout(ctx, s.handler, s.timeout, event)

	s.reply(msg, newOutcomeResponse(event.ID, outcome))
}

func decodeNATSEvent(data []byte) (statuschange.ChangeEvent, error) {
	var payload NATSEvent

	decoder := json.NewDecoder(bytes.NewReader(data))
	// Keep integers exact; float64 would render large values in exponent form.
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return statuschange.ChangeEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if payload.UserID == "" {
		return statuschange.ChangeEvent{}, errors.New("user_id is required")
	}

	return statuschange.ChangeEvent{
		ID:     payload.EventID,
		UserID: payload.UserID,
		Before: statuschange.UserRecord(payload.Before),
		After:  statuschange.UserRecord(payload.After),
		Source: statuschange.SourceNATS,
	}, nil
}

// reply answers request/reply publishers. Plain publishes have no reply subject.
func (s *NATSSubscriber) reply(msg *nats.Msg, resp OutcomeResponse) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", slog.String("error", err.Error()))
		return
	}

	if err := msg.Respond(data); err != nil {
		s.logger.Error("failed to send response", slog.String("error", err.Error()))
	}
}
