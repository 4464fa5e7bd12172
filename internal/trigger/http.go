package trigger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eternisai/status-notifier/internal/auth"
	apierrors "github.com/eternisai/status-notifier/internal/errors"
	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/eternisai/status-notifier/internal/statuschange"
	"github.com/gin-gonic/gin"
)

// FirestoreEventPath is the route receiving pushed Firestore update events.
const FirestoreEventPath = "/v1/events/firestore"

// HTTPTrigger receives Firestore update events pushed over HTTP.
// A failed outcome is answered with 500 so the publisher's redelivery policy applies.
type HTTPTrigger struct {
	handler    statuschange.Handler
	collection string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewHTTPTrigger creates an HTTP trigger for documents of collection.
func NewHTTPTrigger(handler statuschange.Handler, collection string, timeout time.Duration, logger *logger.Logger) *HTTPTrigger {
	return &HTTPTrigger{
		handler:    handler,
		collection: collection,
		timeout:    timeout,
		logger:     logger,
	}
}

// RegisterRoutes mounts the trigger on r.
func (h *HTTPTrigger) RegisterRoutes(r gin.IRoutes) {
	r.POST(FirestoreEventPath, h.HandleFirestoreEvent)
}

// HandleFirestoreEvent handles POST /v1/events/firestore.
func (h *HTTPTrigger) HandleFirestoreEvent(c *gin.Context) {
	eventID := c.GetHeader("ce-id")
	if eventID == "" {
		eventID = logger.GenerateRequestID()
	}

	ctx := logger.WithRequestID(c.Request.Context(), eventID)
	log := h.logger.WithContext(ctx).WithComponent("http-trigger")

	var event FirestoreEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		log.Warn("invalid event body", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "Invalid event body", nil)
		return
	}

	userID, err := event.UserID(h.collection)
	if err != nil {
		log.Warn("event for unexpected document", slog.String("error", err.Error()))
		details := map[string]interface{}{"collection": h.collection}
		if errors.Is(err, ErrMissingDocumentName) {
			details = nil
		}
		apierrors.AbortWithBadRequest(c, err.Error(), details)
		return
	}

	before, after, err := event.Records()
	if err != nil {
		log.Warn("undecodable document fields", slog.String("user_id", userID), slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "Invalid document fields", map[string]interface{}{"reason": err.Error()})
		return
	}

	if caller, ok := auth.GetCaller(c); ok {
		log.Debug("event received", slog.String("user_id", userID), slog.String("caller", caller))
	}

	outcome := handleWithTimeout(ctx, h.handler, h.timeout, statuschange.ChangeEvent{
		ID:     eventID,
		UserID: userID,
		Before: before,
		After:  after,
		Source: statuschange.SourceHTTP,
	})

	resp := newOutcomeResponse(eventID, outcome)
	if outcome.Kind == statuschange.OutcomeFailed {
		apierrors.AbortWithInternal(c, "Notification delivery failed", map[string]interface{}{
			"event_id": resp.EventID,
			"outcome":  resp.Outcome,
			"reason":   resp.Error,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
