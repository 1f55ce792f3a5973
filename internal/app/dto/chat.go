package dto

import (
	"time"

	"github.com/samber/lo"

	domainchat "dmchat/internal/domain/chat"
)

type Participant struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Conversation describes a conversation with both participants joined in.
type Conversation struct {
	ID        string      `json:"id"`
	UserOneID int64       `json:"userOneId"`
	UserTwoID int64       `json:"userTwoId"`
	UserOne   Participant `json:"userOne"`
	UserTwo   Participant `json:"userTwo"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ChatMessage contains a single message payload. Attachment fields are flat
// and omitted when the message has none.
type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	ReceiverID     int64     `json:"receiverId"`
	Message        string    `json:"message"`
	FileURL        string    `json:"fileUrl,omitempty"`
	FileType       string    `json:"fileType,omitempty"`
	FileName       string    `json:"fileName,omitempty"`
	FilePublicID   string    `json:"filePublicId,omitempty"`
	Edited         bool      `json:"edited"`
	Unread         bool      `json:"unread"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Thread struct {
	ID       string        `json:"id"`
	UserOne  Participant   `json:"userOne"`
	UserTwo  Participant   `json:"userTwo"`
	Messages []ChatMessage `json:"messages"`
}

func MapParticipant(p domainchat.Participant) Participant {
	return Participant{ID: int64(p.ID), Name: p.Name, Avatar: p.Avatar}
}

func MapConversation(s domainchat.ConversationSummary) Conversation {
	return Conversation{
		ID:        string(s.ID),
		UserOneID: int64(s.UserOneID),
		UserTwoID: int64(s.UserTwoID),
		UserOne:   MapParticipant(s.UserOne),
		UserTwo:   MapParticipant(s.UserTwo),
		CreatedAt: s.CreatedAt,
	}
}

func MapConversations(items []domainchat.ConversationSummary) []Conversation {
	return lo.Map(items, func(s domainchat.ConversationSummary, _ int) Conversation {
		return MapConversation(s)
	})
}

func MapChatMessage(m domainchat.Message) ChatMessage {
	out := ChatMessage{
		ID:             int64(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       int64(m.SenderID),
		ReceiverID:     int64(m.ReceiverID),
		Message:        m.Body,
		Edited:         m.Edited,
		Unread:         m.Unread,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if a := m.Attachment; !a.IsZero() {
		out.FileURL = a.URL
		out.FileType = a.Type
		out.FileName = a.Name
		out.FilePublicID = a.PublicID
	}
	return out
}

func MapThread(t *domainchat.Thread) Thread {
	if t == nil {
		return Thread{Messages: []ChatMessage{}}
	}
	return Thread{
		ID:      string(t.ID),
		UserOne: MapParticipant(t.UserOne),
		UserTwo: MapParticipant(t.UserTwo),
		Messages: lo.Map(t.Messages, func(m domainchat.Message, _ int) ChatMessage {
			return MapChatMessage(m)
		}),
	}
}
