package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Inbox remembers which broker events a consumer has already handled.
// Unique (event_id, consumer) pairs are enforced by EnsureIndexes.
type Inbox struct {
	col      *mongo.Collection
	consumer string
}

func NewInbox(db *mongo.Database, consumer string) *Inbox {
	return &Inbox{col: db.Collection(colInbox), consumer: consumer}
}

// Seen records eventID and reports whether it had been recorded before.
func (s *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC().UnixMilli()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, fmt.Errorf("mongo: record inbox event: %w", err)
}
