package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dmchat/internal/domain/user"
)

type MessageID int64

func (id MessageID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseMessageID(raw string) (MessageID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMessageID, raw)
	}
	return MessageID(n), nil
}

// Attachment points at an object held by external storage. PublicID is the
// handle used to destroy it.
type Attachment struct {
	URL      string
	Type     string
	Name     string
	PublicID string
}

func (a *Attachment) IsZero() bool {
	return a == nil || (a.URL == "" && a.PublicID == "")
}

type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       user.ID
	ReceiverID     user.ID
	Body           string
	Attachment     *Attachment
	Edited         bool
	Unread         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type NewMessageParams struct {
	ConversationID ConversationID
	SenderID       user.ID
	ReceiverID     user.ID
	Body           string
	Attachment     *Attachment
	Now            time.Time
}

// NewMessage builds an unsaved, unread message. The store assigns the ID.
func NewMessage(params NewMessageParams) (*Message, error) {
	if _, err := ParseConversationID(string(params.ConversationID)); err != nil {
		return nil, err
	}
	if !params.SenderID.Valid() || !params.ReceiverID.Valid() {
		return nil, ErrParticipantRequired
	}
	if params.SenderID == params.ReceiverID {
		return nil, ErrSelfConversation
	}
	body := strings.TrimSpace(params.Body)
	var attachment *Attachment
	if !params.Attachment.IsZero() {
		copied := *params.Attachment
		attachment = &copied
	}
	if body == "" && attachment == nil {
		return nil, ErrEmptyMessage
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Message{
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		ReceiverID:     params.ReceiverID,
		Body:           body,
		Attachment:     attachment,
		Unread:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Edit replaces the body. A message left without body and attachment is rejected.
func (m *Message) Edit(body string, now time.Time) error {
	body = strings.TrimSpace(body)
	if body == "" && m.Attachment.IsZero() {
		return ErrEmptyMessage
	}
	if now.IsZero() {
		now = time.Now()
	}
	m.Body = body
	m.Edited = true
	m.UpdatedAt = now.UTC()
	return nil
}

func (m *Message) HasAttachment() bool {
	return !m.Attachment.IsZero()
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if m.Attachment != nil {
		a := *m.Attachment
		out.Attachment = &a
	}
	return &out
}
