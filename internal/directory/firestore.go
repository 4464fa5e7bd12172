package directory

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/eternisai/status-notifier/internal/statuschange"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultUsersCollection is the Firestore collection holding user documents.
const DefaultUsersCollection = "users"

// FirestoreDirectory reads user records from Firestore.
// Each lookup is a fresh document read, never a cached copy.
type FirestoreDirectory struct {
	firestoreClient *firestore.Client
	collection      string
	logger          *logger.Logger
}

// NewFirestoreDirectory creates a directory over the given collection.
func NewFirestoreDirectory(firestoreClient *firestore.Client, collection string, logger *logger.Logger) *FirestoreDirectory {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	return &FirestoreDirectory{
		firestoreClient: firestoreClient,
		collection:      collection,
		logger:          logger,
	}
}

// Lookup fetches /{collection}/{userID}.
func (d *FirestoreDirectory) Lookup(ctx context.Context, userID string) (statuschange.UserRecord, error) {
	log := d.logger.WithContext(ctx).WithComponent("user-directory")

	doc, err := d.firestoreClient.Collection(d.collection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			log.Debug("user document not found",
				slog.String("path", fmt.Sprintf("%s/%s", d.collection, userID)))
			return nil, statuschange.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user document: %w", err)
	}

	if !doc.Exists() {
		return nil, statuschange.ErrUserNotFound
	}

	return statuschange.UserRecord(doc.Data()), nil
}
