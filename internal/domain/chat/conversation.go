package chat

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dmchat/internal/domain/user"
)

// ConversationIDLength is the length of generated conversation ids.
const ConversationIDLength = 32

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)

type ConversationID string

func (id ConversationID) String() string {
	return string(id)
}

func ParseConversationID(raw string) (ConversationID, error) {
	raw = strings.TrimSpace(raw)
	if !conversationIDPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidConversationID, raw)
	}
	return ConversationID(raw), nil
}

// Conversation is the unique channel between two users. The pair is unordered;
// UserOneID is whoever initiated it and rows keep that orientation forever.
type Conversation struct {
	ID        ConversationID
	UserOneID user.ID
	UserTwoID user.ID
	CreatedAt time.Time
}

func NewConversation(id ConversationID, initiator, counterpart user.ID, now time.Time) (*Conversation, error) {
	if _, err := ParseConversationID(string(id)); err != nil {
		return nil, err
	}
	if !initiator.Valid() || !counterpart.Valid() {
		return nil, ErrParticipantRequired
	}
	if initiator == counterpart {
		return nil, ErrSelfConversation
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Conversation{
		ID:        id,
		UserOneID: initiator,
		UserTwoID: counterpart,
		CreatedAt: now.UTC(),
	}, nil
}

func (c Conversation) Involves(id user.ID) bool {
	return c.UserOneID == id || c.UserTwoID == id
}

// Counterpart returns the other participant, or false when id is not part of the pair.
func (c Conversation) Counterpart(id user.ID) (user.ID, bool) {
	switch id {
	case c.UserOneID:
		return c.UserTwoID, true
	case c.UserTwoID:
		return c.UserOneID, true
	default:
		return 0, false
	}
}

func (c Conversation) PairKey() string {
	return PairKey(c.UserOneID, c.UserTwoID)
}

// PairKey is the orientation-free key storage adapters index uniquely.
func PairKey(a, b user.ID) string {
	if a > b {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

// Participant is the display projection of a user joined at read time.
type Participant struct {
	ID     user.ID
	Name   string
	Avatar string
}

type ConversationSummary struct {
	Conversation
	UserOne Participant
	UserTwo Participant
}

type Thread struct {
	Conversation
	UserOne  Participant
	UserTwo  Participant
	Messages []Message
}
