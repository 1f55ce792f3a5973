package chat

import (
	"context"
	"log/slog"

	"dmchat/internal/app/commands"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const markReadKey = "chat.messages.mark_read"

// MarkReadCommand acknowledges every message the reader received from SenderID.
type MarkReadCommand struct {
	ReaderID       domainuser.ID             `validate:"gt=0"`
	ConversationID domainchat.ConversationID `validate:"required,alphanum,max=64"`
	SenderID       domainuser.ID             `validate:"gt=0,nefield=ReaderID"`
}

func (c MarkReadCommand) Key() string { return markReadKey }

type MarkReadResult struct {
	Updated int64
}

type MarkReadHandler struct {
	Store  *MessageStore
	Logger *slog.Logger
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (MarkReadResult, error) {
	conversation, err := h.Store.Conversations.ByID(ctx, cmd.ConversationID)
	if err != nil {
		return MarkReadResult{}, err
	}
	counterpart, ok := conversation.Counterpart(cmd.ReaderID)
	if !ok || counterpart != cmd.SenderID {
		return MarkReadResult{}, domainchat.ErrNotParticipant
	}
	n, err := h.Store.MarkRead(ctx, cmd.ConversationID, cmd.ReaderID)
	if err != nil {
		return MarkReadResult{}, err
	}
	if h.Logger != nil && n > 0 {
		h.Logger.Debug("messages marked read", "conversation_id", cmd.ConversationID, "reader_id", cmd.ReaderID, "count", n)
	}
	return MarkReadResult{Updated: n}, nil
}

var _ commands.Handler[MarkReadCommand, MarkReadResult] = (*MarkReadHandler)(nil)
