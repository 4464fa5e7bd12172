package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithRequestID stores the id of the inbound request or message.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithUserID stores the id of the user whose document changed.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// WithEventID stores the id of the change event being handled.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, ContextKeyEventID, eventID)
}

// WithChangeEvent stores both ids of a change event. An empty eventID is skipped.
func WithChangeEvent(ctx context.Context, userID, eventID string) context.Context {
	ctx = WithUserID(ctx, userID)
	if eventID != "" {
		ctx = WithEventID(ctx, eventID)
	}
	return ctx
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ContextKeyOperation, operation)
}

// GenerateRequestID returns a random UUID for events that arrive without an id.
func GenerateRequestID() string {
	return uuid.NewString()
}
