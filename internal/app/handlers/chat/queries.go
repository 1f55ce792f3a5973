package chat

import (
	"context"

	"dmchat/internal/app/dto"
	"dmchat/internal/app/queries"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const (
	listConversationsKey = "chat.conversations.list"
	getThreadKey         = "chat.conversations.thread"
)

type ListConversationsQuery struct {
	UserID domainuser.ID `validate:"gt=0"`
}

func (q ListConversationsQuery) Key() string { return listConversationsKey }

type ListConversationsHandler struct {
	Directory *Directory
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) ([]dto.Conversation, error) {
	items, err := h.Directory.ListForUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return dto.MapConversations(items), nil
}

type GetThreadQuery struct {
	CallerID       domainuser.ID             `validate:"gt=0"`
	ConversationID domainchat.ConversationID `validate:"required,alphanum,max=64"`
}

func (q GetThreadQuery) Key() string { return getThreadKey }

// GetThreadHandler returns a conversation's history to one of its participants.
type GetThreadHandler struct {
	Store *MessageStore
}

func (h *GetThreadHandler) Handle(ctx context.Context, q GetThreadQuery) (dto.Thread, error) {
	thread, err := h.Store.FindByConversation(ctx, q.ConversationID)
	if err != nil {
		return dto.Thread{}, err
	}
	if !thread.Involves(q.CallerID) {
		return dto.Thread{}, domainchat.ErrNotParticipant
	}
	return dto.MapThread(thread), nil
}

var (
	_ queries.Handler[ListConversationsQuery, []dto.Conversation] = (*ListConversationsHandler)(nil)
	_ queries.Handler[GetThreadQuery, dto.Thread]                 = (*GetThreadHandler)(nil)
)
