package trigger

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

const updateEnvelope = `{
  "oldValue": {
    "name": "projects/demo/databases/(default)/documents/users/u1",
    "fields": {
      "status": {"stringValue": "active"},
      "fcmToken": {"stringValue": "tok1"},
      "loginCount": {"integerValue": "41"}
    }
  },
  "value": {
    "name": "projects/demo/databases/(default)/documents/users/u1",
    "fields": {
      "status": {"stringValue": "suspended"},
      "fcmToken": {"stringValue": "tok1"},
      "loginCount": {"integerValue": "42"},
      "score": {"doubleValue": 1.5},
      "verified": {"booleanValue": true},
      "deletedAt": {"nullValue": null},
      "updatedAt": {"timestampValue": "2026-10-17T08:30:00.123Z"},
      "avatar": {"bytesValue": "aGk="},
      "home": {"geoPointValue": {"latitude": 52.5, "longitude": 13.4}},
      "roles": {"arrayValue": {"values": [{"stringValue": "admin"}, {"integerValue": 7}]}},
      "profile": {"mapValue": {"fields": {"city": {"stringValue": "Berlin"}}}}
    }
  },
  "updateMask": {"fieldPaths": ["status", "loginCount"]}
}`

func TestFirestoreEventRecords(t *testing.T) {
	var event FirestoreEvent
	if err := json.Unmarshal([]byte(updateEnvelope), &event); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	before, after, err := event.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}

	if before["status"] != "active" || before["loginCount"] != int64(41) {
		t.Errorf("before = %v", before)
	}

	want := map[string]interface{}{
		"status":     "suspended",
		"fcmToken":   "tok1",
		"loginCount": int64(42),
		"score":      1.5,
		"verified":   true,
		"deletedAt":  nil,
		"updatedAt":  time.Date(2026, 10, 17, 8, 30, 0, 123000000, time.UTC),
		"avatar":     []byte("hi"),
		"home":       map[string]interface{}{"latitude": 52.5, "longitude": 13.4},
		"roles":      []interface{}{"admin", int64(7)},
		"profile":    map[string]interface{}{"city": "Berlin"},
	}
	for key, value := range want {
		got, ok := after[key]
		if !ok {
			t.Errorf("after[%q] missing", key)
			continue
		}
		if key == "updatedAt" {
			if !got.(time.Time).Equal(value.(time.Time)) {
				t.Errorf("after[updatedAt] = %v, want %v", got, value)
			}
			continue
		}
		if !reflect.DeepEqual(got, value) {
			t.Errorf("after[%q] = %#v, want %#v", key, got, value)
		}
	}

	if after.Field("deletedAt").Present {
		t.Error("nullValue field should be absent")
	}
	if got := event.UpdateMask.FieldPaths; len(got) != 2 {
		t.Errorf("UpdateMask.FieldPaths = %v", got)
	}
}

func TestFirestoreEventRecordsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		value FirestoreValue
	}{
		{"unknown type", FirestoreValue{"vectorValue": json.RawMessage(`{}`)}},
		{"two types", FirestoreValue{"stringValue": json.RawMessage(`"a"`), "booleanValue": json.RawMessage(`true`)}},
		{"empty", FirestoreValue{}},
		{"bad integer", FirestoreValue{"integerValue": json.RawMessage(`"forty"`)}},
		{"bad timestamp", FirestoreValue{"timestampValue": json.RawMessage(`"yesterday"`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := FirestoreEvent{Value: FirestoreDocument{Fields: map[string]FirestoreValue{"status": tt.value}}}
			if _, _, err := event.Records(); err == nil {
				t.Error("Records() error = nil, want error")
			}
		})
	}
}

func TestFirestoreEventUserID(t *testing.T) {
	tests := []struct {
		name    string
		event   FirestoreEvent
		want    string
		wantErr error
	}{
		{
			name:  "value name",
			event: FirestoreEvent{Value: FirestoreDocument{Name: "projects/p/databases/(default)/documents/users/abc"}},
			want:  "abc",
		},
		{
			name:  "falls back to old value",
			event: FirestoreEvent{OldValue: FirestoreDocument{Name: "projects/p/databases/(default)/documents/users/abc"}},
			want:  "abc",
		},
		{
			name:    "missing",
			event:   FirestoreEvent{},
			wantErr: ErrMissingDocumentName,
		},
		{
			name:    "subcollection",
			event:   FirestoreEvent{Value: FirestoreDocument{Name: "projects/p/databases/(default)/documents/users/abc/devices/d1"}},
			wantErr: ErrWrongCollection,
		},
		{
			name:    "other collection",
			event:   FirestoreEvent{Value: FirestoreDocument{Name: "projects/p/databases/(default)/documents/orders/o1"}},
			wantErr: ErrWrongCollection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.event.UserID("users")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("UserID() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("UserID() = (%q, %v), want %q", got, err, tt.want)
			}
		})
	}
}
