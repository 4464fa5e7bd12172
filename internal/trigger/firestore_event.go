package trigger

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eternisai/status-notifier/internal/statuschange"
)

var (
	ErrMissingDocumentName = errors.New("document name is missing")
	ErrWrongCollection     = errors.New("document is not in the watched collection")
)

// FirestoreEvent is the Firestore document update envelope delivered by
// Cloud Functions and Eventarc in JSON form.
type FirestoreEvent struct {
	OldValue   FirestoreDocument `json:"oldValue"`
	Value      FirestoreDocument `json:"value"`
	UpdateMask struct {
		FieldPaths []string `json:"fieldPaths"`
	} `json:"updateMask"`
}

// FirestoreDocument is a document in the Firestore REST representation.
type FirestoreDocument struct {
	Name       string                    `json:"name"`
	Fields     map[string]FirestoreValue `json:"fields"`
	CreateTime string                    `json:"createTime,omitempty"`
	UpdateTime string                    `json:"updateTime,omitempty"`
}

// FirestoreValue holds exactly one typed value, keyed by its type name
// (stringValue, integerValue, mapValue, ...).
type FirestoreValue map[string]json.RawMessage

// UserID returns the document ID of the updated document, checking that it
// lives directly under collection.
func (e *FirestoreEvent) UserID(collection string) (string, error) {
	name := e.Value.Name
	if name == "" {
		name = e.OldValue.Name
	}
	if name == "" {
		return "", ErrMissingDocumentName
	}

	segments := strings.Split(strings.TrimSuffix(name, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] != collection || segments[len(segments)-1] == "" {
		return "", fmt.Errorf("%w: %s", ErrWrongCollection, name)
	}

	return segments[len(segments)-1], nil
}

// Records decodes the before and after snapshots.
func (e *FirestoreEvent) Records() (before, after statuschange.UserRecord, err error) {
	before, err = decodeFields(e.OldValue.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode oldValue: %w", err)
	}
	after, err = decodeFields(e.Value.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return before, after, nil
}

func decodeFields(fields map[string]FirestoreValue) (statuschange.UserRecord, error) {
	record := make(statuschange.UserRecord, len(fields))
	for name, value := range fields {
		decoded, err := decodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		record[name] = decoded
	}
	return record, nil
}

// decodeValue converts a typed value into the Go types the Firestore client library uses.
func decodeValue(value FirestoreValue) (interface{}, error) {
	if len(value) != 1 {
		return nil, fmt.Errorf("expected exactly one typed value, got %d", len(value))
	}

	for kind, raw := range value {
		switch kind {
		case "nullValue":
			return nil, nil
		case "stringValue", "referenceValue":
			var s string
			err := json.Unmarshal(raw, &s)
			return s, err
		case "booleanValue":
			var b bool
			err := json.Unmarshal(raw, &b)
			return b, err
		case "integerValue":
			// int64 is encoded as a JSON string, but tolerate bare numbers.
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				s = string(raw)
			}
			return strconv.ParseInt(s, 10, 64)
		case "doubleValue":
			var f float64
			if err := json.Unmarshal(raw, &f); err == nil {
				return f, nil
			}
			// NaN and Infinity arrive as strings.
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			return strconv.ParseFloat(s, 64)
		case "timestampValue":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			return time.Parse(time.RFC3339Nano, s)
		case "bytesValue":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			return base64.StdEncoding.DecodeString(s)
		case "geoPointValue":
			var p struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return map[string]interface{}{"latitude": p.Latitude, "longitude": p.Longitude}, nil
		case "mapValue":
			var m struct {
				Fields map[string]FirestoreValue `json:"fields"`
			}
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			rec, err := decodeFields(m.Fields)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}(rec), nil
		case "arrayValue":
			var a struct {
				Values []FirestoreValue `json:"values"`
			}
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
			out := make([]interface{}, 0, len(a.Values))
			for i, v := range a.Values {
				decoded, err := decodeValue(v)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out = append(out, decoded)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("unsupported value type %q", kind)
		}
	}

	return nil, nil
}
