package notifications

import "fmt"

// DeliveryErrorKind classifies why FCM rejected or failed a send.
type DeliveryErrorKind string

const (
	// KindInvalidTarget means the token is unregistered, expired or belongs to another sender.
	KindInvalidTarget DeliveryErrorKind = "invalid_target"
	// KindPayloadRejected means FCM refused the message contents.
	KindPayloadRejected DeliveryErrorKind = "payload_rejected"
	// KindTransport covers outages, quota, auth towards APNs/web push and local timeouts.
	KindTransport DeliveryErrorKind = "transport"
	KindUnknown   DeliveryErrorKind = "unknown"
)

// DeliveryError is returned by FCMNotifier.Send when a message was not delivered.
type DeliveryError struct {
	Kind DeliveryErrorKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
