package chat

import (
	"time"

	"dmchat/internal/domain/shared/events"
	"dmchat/internal/domain/user"
)

type Action string

const (
	ActionAdded   Action = "added"
	ActionEdited  Action = "edited"
	ActionDeleted Action = "deleted"
)

// Event is the payload pushed to a user's real-time topic.
type Event struct {
	Action         Action         `json:"action"`
	SenderID       user.ID        `json:"senderId"`
	ConversationID ConversationID `json:"conversationId,omitempty"`
	MessageID      MessageID      `json:"messageId,omitempty"`
	Message        string         `json:"message,omitempty"`
	FileURL        string         `json:"fileUrl,omitempty"`
	FileType       string         `json:"fileType,omitempty"`
	FileName       string         `json:"fileName,omitempty"`
}

// Notification is a domain event addressed to a single user.
type Notification interface {
	events.DomainEvent
	Recipient() user.ID
	Envelope() Event
}

type MessageAdded struct {
	Message Message
	At      time.Time
}

func (e MessageAdded) EventName() string     { return "chat.message.added" }
func (e MessageAdded) AggregateID() string   { return string(e.Message.ConversationID) }
func (e MessageAdded) OccurredAt() time.Time { return e.At }
func (e MessageAdded) Recipient() user.ID    { return e.Message.ReceiverID }

func (e MessageAdded) Envelope() Event {
	ev := Event{
		Action:         ActionAdded,
		SenderID:       e.Message.SenderID,
		ConversationID: e.Message.ConversationID,
		MessageID:      e.Message.ID,
		Message:        e.Message.Body,
	}
	if a := e.Message.Attachment; !a.IsZero() {
		ev.FileURL = a.URL
		ev.FileType = a.Type
		ev.FileName = a.Name
	}
	return ev
}

type MessageEdited struct {
	Message Message
	At      time.Time
}

func (e MessageEdited) EventName() string     { return "chat.message.edited" }
func (e MessageEdited) AggregateID() string   { return string(e.Message.ConversationID) }
func (e MessageEdited) OccurredAt() time.Time { return e.At }
func (e MessageEdited) Recipient() user.ID    { return e.Message.ReceiverID }

func (e MessageEdited) Envelope() Event {
	return Event{
		Action:         ActionEdited,
		SenderID:       e.Message.SenderID,
		ConversationID: e.Message.ConversationID,
		MessageID:      e.Message.ID,
		Message:        e.Message.Body,
	}
}

type MessageDeleted struct {
	Message Message
	At      time.Time
}

func (e MessageDeleted) EventName() string     { return "chat.message.deleted" }
func (e MessageDeleted) AggregateID() string   { return string(e.Message.ConversationID) }
func (e MessageDeleted) OccurredAt() time.Time { return e.At }
func (e MessageDeleted) Recipient() user.ID    { return e.Message.ReceiverID }

func (e MessageDeleted) Envelope() Event {
	return Event{
		Action:         ActionDeleted,
		SenderID:       e.Message.SenderID,
		ConversationID: e.Message.ConversationID,
		MessageID:      e.Message.ID,
	}
}

var (
	_ Notification = MessageAdded{}
	_ Notification = MessageEdited{}
	_ Notification = MessageDeleted{}
)
