package chat

import (
	"context"
	"time"

	"dmchat/internal/domain/user"
)

type ConversationRepository interface {
	// FindPair matches the pair in either orientation.
	FindPair(ctx context.Context, a, b user.ID) (*Conversation, error)
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// Create fails with ErrDuplicateConversation when the pair or id already exists.
	Create(ctx context.Context, conversation *Conversation) error
	ListForUser(ctx context.Context, userID user.ID) ([]*Conversation, error)
}

type MessageRepository interface {
	// Append stores the message and assigns the next ID.
	Append(ctx context.Context, message *Message) error
	ByID(ctx context.Context, conversationID ConversationID, id MessageID) (*Message, error)
	// Edit replaces the body and marks the row edited in a single write.
	Edit(ctx context.Context, conversationID ConversationID, id MessageID, body string, at time.Time) (*Message, error)
	Remove(ctx context.Context, conversationID ConversationID, id MessageID) (*Message, error)
	// MarkRead clears the unread flag of every message not sent by readerID.
	MarkRead(ctx context.Context, conversationID ConversationID, readerID user.ID) (int64, error)
	ListByConversation(ctx context.Context, conversationID ConversationID) ([]*Message, error)
	// AttachmentsForUser lists the attachments of every message the user sent or received.
	AttachmentsForUser(ctx context.Context, userID user.ID) ([]Attachment, error)
}
