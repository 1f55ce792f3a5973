package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/dto"
	chatapp "dmchat/internal/app/handlers/chat"
	"dmchat/internal/app/queries"
	"dmchat/internal/app/services/attachments"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const (
	DefaultMaxUploadBytes = 5 << 20
	multipartOverhead     = 1 << 20
	multipartMemory       = 8 << 20
	msgTooLarge           = "File too large"
)

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	Thread(c *gin.Context)
	SendMessage(c *gin.Context)
	EditMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	DeleteMessage(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat command and query buses.
type ChatHandler struct {
	Commands       commands.Bus
	Queries        queries.Bus
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// ListConversations returns every conversation of the caller.
func (h ChatHandler) ListConversations(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	items, err := queries.Ask[chatapp.ListConversationsQuery, []dto.Conversation](c.Request.Context(), h.Queries,
		chatapp.ListConversationsQuery{UserID: identity.UserID})
	if err != nil {
		respondError(c, h.Logger, err, "list conversations", "user_id", identity.UserID)
		return
	}
	if items == nil {
		items = []dto.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// Thread returns the participants and ordered messages of one conversation.
func (h ChatHandler) Thread(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID, err := domainchat.ParseConversationID(c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, "load thread")
		return
	}
	thread, err := queries.Ask[chatapp.GetThreadQuery, dto.Thread](c.Request.Context(), h.Queries, chatapp.GetThreadQuery{
		CallerID:       identity.UserID,
		ConversationID: conversationID,
	})
	if err != nil {
		respondError(c, h.Logger, err, "load thread", "conversation_id", conversationID, "user_id", identity.UserID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": thread})
}

// SendMessage accepts a multipart form with receiverId, an optional message
// and an optional file.
func (h ChatHandler) SendMessage(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	limit := h.maxUpload()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"msg": msgTooLarge})
			return
		}
		badRequest(c, "")
		return
	}
	receiverID, err := domainuser.ParseID(c.PostForm("receiverId"))
	if err != nil {
		badRequest(c, "receiverId is required")
		return
	}

	upload, status, msg := h.readUpload(c, limit)
	if status != 0 {
		c.JSON(status, gin.H{"msg": msg})
		return
	}

	message, err := commands.Dispatch[chatapp.SendMessageCommand, dto.ChatMessage](c.Request.Context(), h.Commands, chatapp.SendMessageCommand{
		SenderID:   identity.UserID,
		ReceiverID: receiverID,
		Body:       c.PostForm("message"),
		File:       upload,
	})
	if err != nil {
		respondError(c, h.Logger, err, "send message", "user_id", identity.UserID, "receiver_id", receiverID)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": message})
}

// readUpload returns a non-zero status when the form carries an unacceptable file.
func (h ChatHandler) readUpload(c *gin.Context, limit int64) (*chatapp.FileUpload, int, string) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, 0, ""
		}
		return nil, http.StatusBadRequest, msgInvalidRequest
	}
	if header.Size > limit {
		return nil, http.StatusRequestEntityTooLarge, msgTooLarge
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !strings.EqualFold(contentType, "application/octet-stream") && !attachments.IsAllowedType(contentType) {
		return nil, http.StatusBadRequest, "File type is invalid"
	}
	data, err := readPart(header, limit)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("read upload failed", "error", err)
		}
		return nil, http.StatusBadRequest, msgInvalidRequest
	}
	if int64(len(data)) > limit {
		return nil, http.StatusRequestEntityTooLarge, msgTooLarge
	}
	return &chatapp.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, 0, ""
}

func readPart(header *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

type editMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// EditMessage rewrites the body of a message the caller sent.
func (h ChatHandler) EditMessage(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID, err := domainchat.ParseConversationID(c.Query("conversationId"))
	if err != nil {
		respondError(c, h.Logger, err, "edit message")
		return
	}
	messageID, err := domainchat.ParseMessageID(c.Query("messageId"))
	if err != nil {
		respondError(c, h.Logger, err, "edit message")
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required")
		return
	}
	message, err := commands.Dispatch[chatapp.EditMessageCommand, dto.ChatMessage](c.Request.Context(), h.Commands, chatapp.EditMessageCommand{
		CallerID:       identity.UserID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Body:           req.Message,
	})
	if err != nil {
		respondError(c, h.Logger, err, "edit message", "conversation_id", conversationID, "message_id", messageID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": message})
}

// MarkRead clears the unread flag on everything senderId sent the caller.
func (h ChatHandler) MarkRead(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID, err := domainchat.ParseConversationID(c.Param("conversationId"))
	if err != nil {
		respondError(c, h.Logger, err, "mark read")
		return
	}
	senderID, err := domainuser.ParseID(c.Param("senderId"))
	if err != nil {
		respondError(c, h.Logger, err, "mark read")
		return
	}
	result, err := commands.Dispatch[chatapp.MarkReadCommand, chatapp.MarkReadResult](c.Request.Context(), h.Commands, chatapp.MarkReadCommand{
		ReaderID:       identity.UserID,
		ConversationID: conversationID,
		SenderID:       senderID,
	})
	if err != nil {
		respondError(c, h.Logger, err, "mark read", "conversation_id", conversationID, "user_id", identity.UserID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": result.Updated})
}

// DeleteMessage removes a message the caller sent along with its attachment.
func (h ChatHandler) DeleteMessage(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversationID, err := domainchat.ParseConversationID(c.Param("conversationId"))
	if err != nil {
		respondError(c, h.Logger, err, "delete message")
		return
	}
	messageID, err := domainchat.ParseMessageID(c.Param("messageId"))
	if err != nil {
		respondError(c, h.Logger, err, "delete message")
		return
	}
	_, err = commands.Dispatch[chatapp.DeleteMessageCommand, chatapp.DeleteMessageResult](c.Request.Context(), h.Commands, chatapp.DeleteMessageCommand{
		CallerID:       identity.UserID,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	if err != nil {
		respondError(c, h.Logger, err, "delete message", "conversation_id", conversationID, "message_id", messageID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success removing message"})
}

func (h ChatHandler) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

var _ ChatHTTP = (*ChatHandler)(nil)
