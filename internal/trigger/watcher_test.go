package trigger

import (
	"testing"
	"time"

	"github.com/eternisai/status-notifier/internal/statuschange"
)

func newTestWatcher() *Watcher {
	return NewWatcher(nil, "users", &recordingHandler{}, time.Second, log)
}

func TestWatcherApply(t *testing.T) {
	w := newTestWatcher()
	t0 := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	// Initial snapshot only seeds state.
	events := w.apply([]docChange{
		{kind: changeAdded, id: "u1", data: map[string]interface{}{"status": "active", "fcmToken": "tok1"}, updateTime: t0},
		{kind: changeAdded, id: "u2", data: map[string]interface{}{"status": "active"}, updateTime: t0},
	})
	if len(events) != 0 {
		t.Fatalf("initial snapshot produced %d events, want 0", len(events))
	}

	events = w.apply([]docChange{
		{kind: changeModified, id: "u1", data: map[string]interface{}{"status": "suspended", "fcmToken": "tok1"}, updateTime: t0.Add(time.Second)},
	})
	if len(events) != 1 {
		t.Fatalf("modification produced %d events, want 1", len(events))
	}

	event := events[0]
	if event.UserID != "u1" || event.Source != statuschange.SourceWatcher {
		t.Errorf("event = %+v", event)
	}
	if event.Before["status"] != "active" || event.After["status"] != "suspended" {
		t.Errorf("before=%v after=%v", event.Before, event.After)
	}
	if event.ID == "" {
		t.Error("event ID is empty")
	}

	// The next modification pairs with the state seen last.
	events = w.apply([]docChange{
		{kind: changeModified, id: "u1", data: map[string]interface{}{"status": "active", "fcmToken": "tok1"}, updateTime: t0.Add(2 * time.Second)},
	})
	if len(events) != 1 || events[0].Before["status"] != "suspended" || events[0].After["status"] != "active" {
		t.Errorf("second modification events = %+v", events)
	}
}

func TestWatcherApplyRemovedAndUnknown(t *testing.T) {
	w := newTestWatcher()

	w.apply([]docChange{{kind: changeAdded, id: "u1", data: map[string]interface{}{"status": "active"}}})
	w.apply([]docChange{{kind: changeRemoved, id: "u1"}})

	if _, ok := w.lastSeen["u1"]; ok {
		t.Error("removed document still tracked")
	}

	events := w.apply([]docChange{{kind: changeModified, id: "u1", data: map[string]interface{}{"status": "banned"}}})
	if len(events) != 0 {
		t.Errorf("modification without previous state produced %d events, want 0", len(events))
	}
	if w.lastSeen["u1"]["status"] != "banned" {
		t.Error("modification without previous state was not remembered")
	}
}

func TestWatcherApplyAfterRestart(t *testing.T) {
	w := newTestWatcher()

	w.apply([]docChange{
		{kind: changeAdded, id: "u1", data: map[string]interface{}{"status": "active"}},
		{kind: changeAdded, id: "u2", data: map[string]interface{}{"status": "active"}},
	})

	// A restarted listener reports every document as added again.
	events := w.apply([]docChange{
		{kind: changeAdded, id: "u1", data: map[string]interface{}{"status": "active"}},
		{kind: changeAdded, id: "u2", data: map[string]interface{}{"status": "suspended"}},
	})

	if len(events) != 1 {
		t.Fatalf("restart produced %d events, want 1", len(events))
	}
	if events[0].UserID != "u2" || events[0].After["status"] != "suspended" {
		t.Errorf("event = %+v", events[0])
	}
}
