package statuschange

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
)

const (
	// FieldStatus is the watched user field.
	FieldStatus = "status"
	// FieldFCMToken holds the user's current push delivery target.
	FieldFCMToken = "fcmToken"
)

// ErrUserNotFound is returned by a UserDirectory when the user record does not exist.
var ErrUserNotFound = errors.New("user not found")

// Field is a single record field that may be absent.
// A key holding nil is treated the same as a missing key.
type Field struct {
	Value   interface{}
	Present bool
}

// Equal reports whether two fields hold the same value. Two absent fields are equal.
// Numbers compare by value whatever their Go type, so int64(1) equals float64(1).
func (f Field) Equal(other Field) bool {
	if f.Present != other.Present {
		return false
	}
	if !f.Present {
		return true
	}
	a, aNum := toNumber(f.Value)
	b, bNum := toNumber(other.Value)
	if aNum && bNum {
		return a.equal(b)
	}
	return reflect.DeepEqual(f.Value, other.Value)
}

type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (n number) equal(other number) bool {
	if n.isInt && other.isInt {
		return n.i == other.i
	}
	return n.float() == other.float()
}

func toNumber(v interface{}) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{i: int64(n), isInt: true}, true
	case int8:
		return number{i: int64(n), isInt: true}, true
	case int16:
		return number{i: int64(n), isInt: true}, true
	case int32:
		return number{i: int64(n), isInt: true}, true
	case int64:
		return number{i: n, isInt: true}, true
	case uint:
		return fromUint(uint64(n)), true
	case uint8:
		return fromUint(uint64(n)), true
	case uint16:
		return fromUint(uint64(n)), true
	case uint32:
		return fromUint(uint64(n)), true
	case uint64:
		return fromUint(n), true
	case float32:
		return number{f: float64(n)}, true
	case float64:
		return number{f: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{i: i, isInt: true}, true
		}
		if f, err := n.Float64(); err == nil {
			return number{f: f}, true
		}
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u <= math.MaxInt64 {
		return number{i: int64(u), isInt: true}
	}
	return number{f: float64(u)}
}

// String renders the field value. Absent fields render as the empty string.
func (f Field) String() string {
	if !f.Present {
		return ""
	}
	if s, ok := f.Value.(string); ok {
		return s
	}
	return fmt.Sprint(f.Value)
}

// UserRecord is a snapshot of a user document's fields.
type UserRecord map[string]interface{}

// Field returns the named field.
func (r UserRecord) Field(name string) Field {
	v, ok := r[name]
	if !ok || v == nil {
		return Field{}
	}
	return Field{Value: v, Present: true}
}

// Status returns the record's status field.
func (r UserRecord) Status() Field {
	return r.Field(FieldStatus)
}

// DeliveryTarget returns the push token when it is present as a non-empty string.
func (r UserRecord) DeliveryTarget() (string, bool) {
	f := r.Field(FieldFCMToken)
	if !f.Present {
		return "", false
	}
	token, ok := f.Value.(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Source names the trigger that produced a ChangeEvent.
type Source string

const (
	SourceWatcher Source = "watcher"
	SourceHTTP    Source = "http"
	SourceNATS    Source = "nats"
)

// ChangeEvent is one committed update of a user document.
type ChangeEvent struct {
	ID     string
	UserID string
	Before UserRecord
	After  UserRecord
	Source Source
}

// MessageData is the machine-readable part of a notification.
type MessageData struct {
	Type   string
	Status string
}

// Map returns the data payload in the string map form push transports expect.
func (d MessageData) Map() map[string]string {
	return map[string]string{
		"type":   d.Type,
		"status": d.Status,
	}
}

// NotificationMessage is a push notification addressed to a single device.
type NotificationMessage struct {
	Title  string
	Body   string
	Data   MessageData
	Target string
}

// OutcomeKind is the terminal state of one Handle invocation.
type OutcomeKind string

const (
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeDelivered OutcomeKind = "delivered"
	OutcomeFailed    OutcomeKind = "failed"
)

// SkipReason explains a skipped outcome.
type SkipReason string

const (
	ReasonStatusUnchanged SkipReason = "status_unchanged"
	ReasonUserNotFound    SkipReason = "user_not_found"
	ReasonMissingTarget   SkipReason = "missing_target"
)

// Outcome is the result of handling a ChangeEvent.
type Outcome struct {
	Kind      OutcomeKind
	Reason    SkipReason
	MessageID string
	Err       error
}

// Skipped builds a skipped outcome.
func Skipped(reason SkipReason) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// Delivered builds a delivered outcome.
func Delivered(messageID string) Outcome {
	return Outcome{Kind: OutcomeDelivered, MessageID: messageID}
}

// Failed builds a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}
