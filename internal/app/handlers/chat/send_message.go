package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/dto"
	"dmchat/internal/app/services/attachments"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const sendMessageKey = "chat.messages.send"

// FileUpload carries an attachment received at the transport boundary.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte `validate:"required"`
}

// SendMessageCommand appends a message, creating the conversation on first contact.
type SendMessageCommand struct {
	SenderID   domainuser.ID `validate:"gt=0"`
	ReceiverID domainuser.ID `validate:"gt=0,nefield=SenderID"`
	Body       string        `validate:"max=10000"`
	File       *FileUpload
}

func (c SendMessageCommand) Key() string { return sendMessageKey }

type SendMessageHandler struct {
	Directory   *Directory
	Store       *MessageStore
	Attachments Attachments
	Notifier    *Notifier
	Logger      *slog.Logger
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (dto.ChatMessage, error) {
	if cmd.SenderID == cmd.ReceiverID {
		return dto.ChatMessage{}, domainchat.ErrSelfConversation
	}
	if strings.TrimSpace(cmd.Body) == "" && cmd.File == nil {
		return dto.ChatMessage{}, domainchat.ErrEmptyMessage
	}
	if err := h.Directory.EnsureUser(ctx, cmd.ReceiverID); err != nil {
		return dto.ChatMessage{}, err
	}
	// The file is checked and stored before the conversation exists, so a
	// rejected upload leaves nothing behind.
	var attachment *domainchat.Attachment
	if cmd.File != nil {
		uploaded, err := h.Attachments.Upload(ctx, attachments.UploadParams{
			OwnerID:     cmd.SenderID,
			Filename:    cmd.File.Filename,
			ContentType: cmd.File.ContentType,
			Data:        cmd.File.Data,
		})
		if err != nil {
			return dto.ChatMessage{}, err
		}
		attachment = &uploaded
	}

	conversationID, err := h.Directory.GetOrCreate(ctx, cmd.SenderID, cmd.ReceiverID)
	if err != nil {
		h.rollback(ctx, attachment)
		return dto.ChatMessage{}, err
	}

	msg, err := h.Store.Append(ctx, AppendParams{
		ConversationID: conversationID,
		SenderID:       cmd.SenderID,
		ReceiverID:     cmd.ReceiverID,
		Body:           cmd.Body,
		Attachment:     attachment,
	})
	if err != nil {
		h.rollback(ctx, attachment)
		return dto.ChatMessage{}, err
	}

	h.Notifier.Notify(ctx, domainchat.MessageAdded{Message: *msg, At: time.Now().UTC()})
	if h.Logger != nil {
		h.Logger.Info("message sent", "conversation_id", conversationID, "message_id", msg.ID, "sender_id", msg.SenderID, "has_attachment", attachment != nil)
	}
	return dto.MapChatMessage(*msg), nil
}

func (h *SendMessageHandler) rollback(ctx context.Context, attachment *domainchat.Attachment) {
	if attachment != nil {
		h.Attachments.Destroy(ctx, attachment.PublicID)
	}
}

var _ commands.Handler[SendMessageCommand, dto.ChatMessage] = (*SendMessageHandler)(nil)
