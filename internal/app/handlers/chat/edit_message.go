package chat

import (
	"context"
	"log/slog"
	"time"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/dto"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const editMessageKey = "chat.messages.edit"

type EditMessageCommand struct {
	CallerID       domainuser.ID             `validate:"gt=0"`
	ConversationID domainchat.ConversationID `validate:"required,alphanum,max=64"`
	MessageID      domainchat.MessageID      `validate:"gt=0"`
	Body           string                    `validate:"max=10000"`
}

func (c EditMessageCommand) Key() string { return editMessageKey }

// EditMessageHandler lets the sender rewrite the body of their own message.
type EditMessageHandler struct {
	Store    *MessageStore
	Notifier *Notifier
	Logger   *slog.Logger
}

func (h *EditMessageHandler) Handle(ctx context.Context, cmd EditMessageCommand) (dto.ChatMessage, error) {
	current, err := h.Store.Message(ctx, cmd.ConversationID, cmd.MessageID)
	if err != nil {
		return dto.ChatMessage{}, err
	}
	if current.SenderID != cmd.CallerID {
		return dto.ChatMessage{}, domainchat.ErrNotMessageOwner
	}
	updated, err := h.Store.Edit(ctx, cmd.ConversationID, cmd.MessageID, cmd.Body)
	if err != nil {
		return dto.ChatMessage{}, err
	}

	h.Notifier.Notify(ctx, domainchat.MessageEdited{Message: *updated, At: time.Now().UTC()})
	if h.Logger != nil {
		h.Logger.Info("message edited", "conversation_id", updated.ConversationID, "message_id", updated.ID)
	}
	return dto.MapChatMessage(*updated), nil
}

var _ commands.Handler[EditMessageCommand, dto.ChatMessage] = (*EditMessageHandler)(nil)
