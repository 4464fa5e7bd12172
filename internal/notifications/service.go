package notifications

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"firebase.google.com/go/v4/messaging"
	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/eternisai/status-notifier/internal/statuschange"
)

// messagingClient is the subset of *messaging.Client used for delivery.
// Lets tests emulate FCM responses.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
}

// Options tune FCMNotifier behaviour.
type Options struct {
	// DryRun validates messages with FCM without delivering them.
	DryRun bool
	// DebugCurl logs a curl reproduction of failed requests. Needs CredJSON and ProjectID.
	DebugCurl bool
	CredJSON  string
	ProjectID string
}

// FCMNotifier sends notifications through Firebase Cloud Messaging.
type FCMNotifier struct {
	messagingClient messagingClient
	logger          *logger.Logger
	opts            Options
}

// NewFCMNotifier creates a notifier backed by the given messaging client.
func NewFCMNotifier(messagingClient *messaging.Client, logger *logger.Logger, opts Options) *FCMNotifier {
	return &FCMNotifier{
		messagingClient: messagingClient,
		logger:          logger,
		opts:            opts,
	}
}

// Send delivers msg to its target device and returns the FCM message name.
// Failures are returned as *DeliveryError. Send never retries.
func (s *FCMNotifier) Send(ctx context.Context, msg statuschange.NotificationMessage) (string, error) {
	log := s.logger.WithContext(ctx).WithComponent("push-notifications")

	message := toFCMMessage(msg)

	log.Debug("sending via FCM",
		slog.String("type", msg.Data.Type),
		slog.String("token_prefix", tokenPrefix(msg.Target)),
		slog.Bool("dry_run", s.opts.DryRun))

	var (
		response string
		err      error
	)
	if s.opts.DryRun {
		response, err = s.messagingClient.SendDryRun(ctx, message)
	} else {
		response, err = s.messagingClient.Send(ctx, message)
	}

	if err != nil {
		deliveryErr := &DeliveryError{Kind: classify(err), Err: err}
		log.Warn("FCM send failed",
			slog.String("kind", string(deliveryErr.Kind)),
			slog.String("token_prefix", tokenPrefix(msg.Target)),
			slog.String("error", err.Error()))

		if s.opts.DebugCurl && s.opts.CredJSON != "" {
			log.Debug("FCM debug request",
				slog.String("curl", GenerateDebugCurl(ctx, s.opts.CredJSON, s.opts.ProjectID, message)))
		}
		return "", deliveryErr
	}

	return response, nil
}

func toFCMMessage(msg statuschange.NotificationMessage) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data:  msg.Data.Map(),
		Token: msg.Target,
	}
}

func classify(err error) DeliveryErrorKind {
	switch {
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err):
		return KindInvalidTarget
	case messaging.IsInvalidArgument(err):
		return KindPayloadRejected
	case messaging.IsUnavailable(err),
		messaging.IsInternal(err),
		messaging.IsQuotaExceeded(err),
		messaging.IsThirdPartyAuthError(err):
		return KindTransport
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return KindTransport
	}

	return KindUnknown
}

func tokenPrefix(token string) string {
	return token[:min(10, len(token))] + "..."
}
