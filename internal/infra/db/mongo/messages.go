package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
	ids sequence
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(colMessages), ids: newSequence(db, colMessages)}
}

func (r *MessageRepository) Append(ctx context.Context, m *domainchat.Message) error {
	if m == nil {
		return domainchat.ErrEmptyMessage
	}
	id, err := r.ids.next(ctx)
	if err != nil {
		return err
	}
	doc := newMessageDocument(m)
	doc.ID = id
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: insert message: %w", err)
	}
	m.ID = domainchat.MessageID(id)
	return nil
}

func (r *MessageRepository) ByID(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, messageFilter(conversationID, id)).Decode(&doc); err != nil {
		return nil, notFoundOr(err, "find message")
	}
	return doc.toDomain(), nil
}

func (r *MessageRepository) Edit(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID, body string, at time.Time) (*domainchat.Message, error) {
	update := bson.M{"$set": bson.M{
		"body":       body,
		"edited":     true,
		"updated_at": at.UnixMilli(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDocument
	if err := r.col.FindOneAndUpdate(ctx, messageFilter(conversationID, id), update, opts).Decode(&doc); err != nil {
		return nil, notFoundOr(err, "edit message")
	}
	return doc.toDomain(), nil
}

func (r *MessageRepository) Remove(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	var doc messageDocument
	if err := r.col.FindOneAndDelete(ctx, messageFilter(conversationID, id)).Decode(&doc); err != nil {
		return nil, notFoundOr(err, "remove message")
	}
	return doc.toDomain(), nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, readerID domainuser.ID) (int64, error) {
	filter := bson.M{
		"conversation_id": string(conversationID),
		"sender_id":       bson.M{"$ne": int64(readerID)},
		"unread":          true,
	}
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"unread": false}})
	if err != nil {
		return 0, fmt.Errorf("mongo: mark read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID domainchat.ConversationID) ([]*domainchat.Message, error) {
	docs, err := r.find(ctx, bson.M{"conversation_id": string(conversationID)})
	if err != nil {
		return nil, err
	}
	out := make([]*domainchat.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *MessageRepository) AttachmentsForUser(ctx context.Context, userID domainuser.ID) ([]domainchat.Attachment, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": int64(userID)},
			bson.M{"receiver_id": int64(userID)},
		},
		"file_public_id": bson.M{"$gt": ""},
	}
	docs, err := r.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domainchat.Attachment, 0, len(docs))
	for _, d := range docs {
		if m := d.toDomain(); m.HasAttachment() {
			out = append(out, *m.Attachment)
		}
	}
	return out, nil
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M) ([]messageDocument, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find messages: %w", err)
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode messages: %w", err)
	}
	return docs, nil
}

func messageFilter(conversationID domainchat.ConversationID, id domainchat.MessageID) bson.M {
	return bson.M{"_id": int64(id), "conversation_id": string(conversationID)}
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domainchat.ErrMessageNotFound
	}
	return fmt.Errorf("mongo: %s: %w", action, err)
}

type messageDocument struct {
	ID             int64  `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       int64  `bson:"sender_id"`
	ReceiverID     int64  `bson:"receiver_id"`
	Body           string `bson:"body"`
	FileURL        string `bson:"file_url,omitempty"`
	FileType       string `bson:"file_type,omitempty"`
	FileName       string `bson:"file_name,omitempty"`
	FilePublicID   string `bson:"file_public_id,omitempty"`
	Edited         bool   `bson:"edited"`
	Unread         bool   `bson:"unread"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	doc := messageDocument{
		ID:             int64(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       int64(m.SenderID),
		ReceiverID:     int64(m.ReceiverID),
		Body:           m.Body,
		Edited:         m.Edited,
		Unread:         m.Unread,
		CreatedAt:      m.CreatedAt.UnixMilli(),
		UpdatedAt:      m.UpdatedAt.UnixMilli(),
	}
	if a := m.Attachment; !a.IsZero() {
		doc.FileURL = a.URL
		doc.FileType = a.Type
		doc.FileName = a.Name
		doc.FilePublicID = a.PublicID
	}
	return doc
}

func (d messageDocument) toDomain() *domainchat.Message {
	m := &domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		SenderID:       domainuser.ID(d.SenderID),
		ReceiverID:     domainuser.ID(d.ReceiverID),
		Body:           d.Body,
		Edited:         d.Edited,
		Unread:         d.Unread,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
	if d.FileURL != "" || d.FilePublicID != "" {
		m.Attachment = &domainchat.Attachment{
			URL:      d.FileURL,
			Type:     d.FileType,
			Name:     d.FileName,
			PublicID: d.FilePublicID,
		}
	}
	return m
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)
