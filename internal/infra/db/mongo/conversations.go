package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

// ConversationRepository stores conversations with a unique pair_key index,
// so concurrent first contacts between two users insert exactly one row.
type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(colConversations)}
}

func (r *ConversationRepository) FindPair(ctx context.Context, a, b domainuser.ID) (*domainchat.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"user_one_id": int64(a), "user_two_id": int64(b)},
		bson.M{"user_one_id": int64(b), "user_two_id": int64(a)},
	}}
	return r.findOne(ctx, filter)
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainchat.Conversation) error {
	if c == nil {
		return domainchat.ErrParticipantRequired
	}
	if _, err := r.col.InsertOne(ctx, newConversationDocument(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrDuplicateConversation
		}
		return fmt.Errorf("mongo: insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domainchat.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"user_one_id": int64(userID)},
		bson.M{"user_two_id": int64(userID)},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list conversations: %w", err)
	}
	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode conversations: %w", err)
	}
	out := make([]*domainchat.Conversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, fmt.Errorf("mongo: find conversation: %w", err)
	}
	return doc.toDomain(), nil
}

type conversationDocument struct {
	ID        string `bson:"_id"`
	UserOneID int64  `bson:"user_one_id"`
	UserTwoID int64  `bson:"user_two_id"`
	PairKey   string `bson:"pair_key"`
	CreatedAt int64  `bson:"created_at"`
}

func newConversationDocument(c *domainchat.Conversation) conversationDocument {
	return conversationDocument{
		ID:        string(c.ID),
		UserOneID: int64(c.UserOneID),
		UserTwoID: int64(c.UserTwoID),
		PairKey:   c.PairKey(),
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
}

func (d conversationDocument) toDomain() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(d.ID),
		UserOneID: domainuser.ID(d.UserOneID),
		UserTwoID: domainuser.ID(d.UserTwoID),
		CreatedAt: timestampToTime(d.CreatedAt),
	}
}

var _ domainchat.ConversationRepository = (*ConversationRepository)(nil)
