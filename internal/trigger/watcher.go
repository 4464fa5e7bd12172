package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/eternisai/status-notifier/internal/statuschange"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultRestartDelay = 5 * time.Second

type changeKind int

const (
	changeAdded changeKind = iota
	changeModified
	changeRemoved
)

// docChange is a document change detached from the Firestore client types.
type docChange struct {
	kind       changeKind
	id         string
	data       map[string]interface{}
	updateTime time.Time
}

// Watcher turns realtime updates of a Firestore collection into change events.
//
// It remembers the last seen data of every document so that a modification
// can be paired with its previous state. Documents reported again after a
// listener restart are compared with the remembered state, so changes made
// while disconnected still produce one event (intermediate states are lost).
type Watcher struct {
	firestoreClient *firestore.Client
	collection      string
	handler         statuschange.Handler
	timeout         time.Duration
	restartDelay    time.Duration
	logger          *logger.Logger

	lastSeen map[string]statuschange.UserRecord
}

// NewWatcher creates a watcher over collection.
func NewWatcher(firestoreClient *firestore.Client, collection string, handler statuschange.Handler, timeout time.Duration, logger *logger.Logger) *Watcher {
	return &Watcher{
		firestoreClient: firestoreClient,
		collection:      collection,
		handler:         handler,
		timeout:         timeout,
		restartDelay:    defaultRestartDelay,
		logger:          logger.WithComponent("firestore-watcher"),
		lastSeen:        make(map[string]statuschange.UserRecord),
	}
}

// Run listens until ctx is cancelled, restarting the listener after errors.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("starting firestore watcher", slog.String("collection", w.collection))

	for {
		err := w.listen(ctx)
		if ctx.Err() != nil {
			w.logger.Info("firestore watcher stopped")
			return
		}

		w.logger.Error("firestore listener failed, restarting",
			slog.String("error", err.Error()),
			slog.Duration("delay", w.restartDelay))

		select {
		case <-ctx.Done():
			w.logger.Info("firestore watcher stopped")
			return
		case <-time.After(w.restartDelay):
		}
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	it := w.firestoreClient.Collection(w.collection).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				return errors.New("snapshot iterator closed")
			}
			if status.Code(err) == codes.Canceled {
				return err
			}
			return fmt.Errorf("failed to read snapshot: %w", err)
		}

		changes := make([]docChange, 0, len(snap.Changes))
		for _, ch := range snap.Changes {
			changes = append(changes, fromDocumentChange(ch))
		}

		for _, event := range w.apply(changes) {
			handleWithTimeout(ctx, w.handler, w.timeout, event)
		}
	}
}

func fromDocumentChange(ch firestore.DocumentChange) docChange {
	c := docChange{
		id:         ch.Doc.Ref.ID,
		updateTime: ch.Doc.UpdateTime,
	}

	switch ch.Kind {
	case firestore.DocumentAdded:
		c.kind = changeAdded
		c.data = ch.Doc.Data()
	case firestore.DocumentModified:
		c.kind = changeModified
		c.data = ch.Doc.Data()
	case firestore.DocumentRemoved:
		c.kind = changeRemoved
	}

	return c
}

// apply updates the last seen state and returns the events to handle, in change order.
func (w *Watcher) apply(changes []docChange) []statuschange.ChangeEvent {
	var events []statuschange.ChangeEvent

	for _, ch := range changes {
		if ch.kind == changeRemoved {
			delete(w.lastSeen, ch.id)
			continue
		}

		after := statuschange.UserRecord(ch.data)
		before, known := w.lastSeen[ch.id]
		w.lastSeen[ch.id] = after

		if !known {
			if ch.kind == changeModified {
				w.logger.Warn("modified document without previous state",
					slog.String("user_id", ch.id))
			}
			continue
		}

		if ch.kind == changeAdded && reflect.DeepEqual(before, after) {
			continue
		}

		events = append(events, statuschange.ChangeEvent{
			ID:     fmt.Sprintf("%s@%d", ch.id, ch.updateTime.UnixNano()),
			UserID: ch.id,
			Before: before,
			After:  after,
			Source: statuschange.SourceWatcher,
		})
	}

	return events
}
