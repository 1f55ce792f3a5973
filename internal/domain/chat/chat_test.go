package chat_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dmchat/internal/domain/chat"
	"dmchat/internal/domain/user"
)

const convID = chat.ConversationID("AbCdEfGhIjKlMnOpQrStUvWxYz012345")

func TestNewConversation(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	c, err := chat.NewConversation(convID, 10, 20, now)
	req.NoError(err)
	req.Equal(user.ID(10), c.UserOneID)
	req.Equal(user.ID(20), c.UserTwoID)
	req.True(c.Involves(20))
	req.False(c.Involves(30))

	other, ok := c.Counterpart(20)
	req.True(ok)
	req.Equal(user.ID(10), other)
	_, ok = c.Counterpart(30)
	req.False(ok)

	_, err = chat.NewConversation(convID, 10, 10, now)
	req.ErrorIs(err, chat.ErrSelfConversation)
	req.True(chat.IsValidation(err))

	_, err = chat.NewConversation("bad id!", 10, 20, now)
	req.ErrorIs(err, chat.ErrInvalidConversationID)

	_, err = chat.NewConversation(convID, 0, 20, now)
	req.ErrorIs(err, chat.ErrParticipantRequired)
}

func TestPairKeyIgnoresOrientation(t *testing.T) {
	req := require.New(t)
	req.Equal("3:12", chat.PairKey(12, 3))
	req.Equal(chat.PairKey(3, 12), chat.PairKey(12, 3))
}

func TestNewMessageRequiresBodyOrAttachment(t *testing.T) {
	req := require.New(t)

	_, err := chat.NewMessage(chat.NewMessageParams{ConversationID: convID, SenderID: 1, ReceiverID: 2, Body: "   "})
	req.ErrorIs(err, chat.ErrEmptyMessage)

	m, err := chat.NewMessage(chat.NewMessageParams{
		ConversationID: convID,
		SenderID:       1,
		ReceiverID:     2,
		Attachment:     &chat.Attachment{URL: "https://cdn/x.png", PublicID: "uploads/1/x.png", Type: "image/png"},
	})
	req.NoError(err)
	req.True(m.Unread)
	req.False(m.Edited)
	req.True(m.HasAttachment())
	req.Empty(m.Body)

	m, err = chat.NewMessage(chat.NewMessageParams{ConversationID: convID, SenderID: 1, ReceiverID: 2, Body: " hi "})
	req.NoError(err)
	req.Equal("hi", m.Body)
	req.Nil(m.Attachment)
}

func TestMessageEdit(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := chat.NewMessage(chat.NewMessageParams{ConversationID: convID, SenderID: 1, ReceiverID: 2, Body: "a", Now: now})
	req.NoError(err)

	req.ErrorIs(m.Edit(" ", now), chat.ErrEmptyMessage)
	req.False(m.Edited)

	later := now.Add(time.Minute)
	req.NoError(m.Edit("b", later))
	req.True(m.Edited)
	req.Equal("b", m.Body)
	req.Equal(later, m.UpdatedAt)
	req.Equal(now, m.CreatedAt)

	withFile := &chat.Message{Attachment: &chat.Attachment{URL: "u", PublicID: "p"}}
	req.NoError(withFile.Edit("", later))
}

func TestMessageCloneIsDeep(t *testing.T) {
	req := require.New(t)
	m := &chat.Message{ID: 1, Attachment: &chat.Attachment{URL: "u"}}
	c := m.Clone()
	c.Attachment.URL = "changed"
	req.Equal("u", m.Attachment.URL)
}

func TestParseMessageID(t *testing.T) {
	req := require.New(t)
	id, err := chat.ParseMessageID("15")
	req.NoError(err)
	req.Equal(chat.MessageID(15), id)

	_, err = chat.ParseMessageID("x")
	req.ErrorIs(err, chat.ErrInvalidMessageID)
	_, err = chat.ParseMessageID("0")
	req.ErrorIs(err, chat.ErrInvalidMessageID)
}

func TestEnvelopes(t *testing.T) {
	req := require.New(t)
	msg := chat.Message{
		ID:             3,
		ConversationID: convID,
		SenderID:       10,
		ReceiverID:     20,
		Body:           "hi",
		Attachment:     &chat.Attachment{URL: "https://cdn/f.pdf", Type: "application/pdf", Name: "f.pdf", PublicID: "p"},
	}

	added := chat.MessageAdded{Message: msg}
	req.Equal(user.ID(20), added.Recipient())
	raw, err := json.Marshal(added.Envelope())
	req.NoError(err)
	req.JSONEq(`{"action":"added","senderId":10,"conversationId":"`+string(convID)+`","messageId":3,"message":"hi","fileUrl":"https://cdn/f.pdf","fileType":"application/pdf","fileName":"f.pdf"}`, string(raw))

	deleted := chat.MessageDeleted{Message: msg}
	raw, err = json.Marshal(deleted.Envelope())
	req.NoError(err)
	req.JSONEq(`{"action":"deleted","senderId":10,"conversationId":"`+string(convID)+`","messageId":3}`, string(raw))

	edited := chat.MessageEdited{Message: msg}
	req.Equal(chat.ActionEdited, edited.Envelope().Action)
	req.Empty(edited.Envelope().FileURL)
}

func TestErrorClasses(t *testing.T) {
	req := require.New(t)
	req.True(chat.IsNotFound(chat.ErrMessageNotFound))
	req.True(chat.IsNotFound(user.ErrNotFound))
	req.True(chat.IsForbidden(chat.ErrNotParticipant))
	req.False(chat.IsForbidden(chat.ErrEmptyMessage))
	req.True(chat.IsValidation(chat.ErrInvalidMessageID))
}
