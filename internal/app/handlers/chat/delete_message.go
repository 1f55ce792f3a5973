package chat

import (
	"context"
	"log/slog"
	"time"

	"dmchat/internal/app/commands"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const deleteMessageKey = "chat.messages.delete"

type DeleteMessageCommand struct {
	CallerID       domainuser.ID             `validate:"gt=0"`
	ConversationID domainchat.ConversationID `validate:"required,alphanum,max=64"`
	MessageID      domainchat.MessageID      `validate:"gt=0"`
}

func (c DeleteMessageCommand) Key() string { return deleteMessageKey }

type DeleteMessageResult struct {
	MessageID domainchat.MessageID
}

// DeleteMessageHandler removes a message owned by the caller. The attachment
// is destroyed first on a best effort basis.
type DeleteMessageHandler struct {
	Store       *MessageStore
	Attachments Attachments
	Notifier    *Notifier
	Logger      *slog.Logger
}

func (h *DeleteMessageHandler) Handle(ctx context.Context, cmd DeleteMessageCommand) (DeleteMessageResult, error) {
	current, err := h.Store.Message(ctx, cmd.ConversationID, cmd.MessageID)
	if err != nil {
		return DeleteMessageResult{}, err
	}
	if current.SenderID != cmd.CallerID {
		return DeleteMessageResult{}, domainchat.ErrNotMessageOwner
	}
	if current.HasAttachment() && h.Attachments != nil {
		h.Attachments.Destroy(ctx, current.Attachment.PublicID)
	}
	removed, err := h.Store.Remove(ctx, cmd.ConversationID, cmd.MessageID)
	if err != nil {
		return DeleteMessageResult{}, err
	}

	h.Notifier.Notify(ctx, domainchat.MessageDeleted{Message: *removed, At: time.Now().UTC()})
	if h.Logger != nil {
		h.Logger.Info("message deleted", "conversation_id", removed.ConversationID, "message_id", removed.ID)
	}
	return DeleteMessageResult{MessageID: removed.ID}, nil
}

var _ commands.Handler[DeleteMessageCommand, DeleteMessageResult] = (*DeleteMessageHandler)(nil)
