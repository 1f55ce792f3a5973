package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"dmchat/internal/app/middleware"
	"dmchat/internal/app/services/attachments"
	"dmchat/internal/app/services/users"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const (
	msgProvideToken   = "Please provide token"
	msgSessionExpired = "session expired! Please sign In"
	msgTryAgain       = "Oops. There is an error, please try again"
	msgInvalidRequest = "Request is not valid"
	msgForbidden      = "You are not allowed to do this"
	msgNotFound       = "Data is not found"
)

// publicMessages holds the texts callers may see for known failures.
var publicMessages = []struct {
	err error
	msg string
}{
	{domainchat.ErrEmptyMessage, "Message or file is required"},
	{domainchat.ErrSelfConversation, "You cannot send a message to yourself"},
	{domainchat.ErrConversationNotFound, "Conversation is not found"},
	{domainchat.ErrMessageNotFound, "Message is not found"},
	{domainchat.ErrNotMessageOwner, "You can only change your own message"},
	{domainchat.ErrNotParticipant, "You are not part of this conversation"},
	{attachments.ErrUnsupportedType, "File type is invalid"},
	{attachments.ErrEmptyPayload, "File is empty"},
	{domainuser.ErrNotFound, "user is not found"},
	{users.ErrWrongPassword, "Password is incorrect"},
	{users.ErrPasswordTooShort, "Password must be at least 6 characters"},
	{users.ErrNotAccountOwner, "You can only change your own account"},
	{domainuser.ErrEmailAlreadyUsed, "Email is already used"},
	{domainuser.ErrEmailRequired, "Email is required"},
	{domainuser.ErrNameRequired, "Name is required"},
}

// statusFor classifies err into the HTTP status of its error class.
func statusFor(err error) int {
	switch {
	case errors.Is(err, middleware.ErrInvalidInput),
		domainchat.IsValidation(err),
		errors.Is(err, attachments.ErrUnsupportedType),
		errors.Is(err, attachments.ErrEmptyPayload),
		users.IsValidation(err):
		return http.StatusBadRequest
	case domainchat.IsForbidden(err), errors.Is(err, users.ErrNotAccountOwner):
		return http.StatusForbidden
	case domainchat.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domainuser.ErrEmailAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, attachments.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error, status int) string {
	for _, pm := range publicMessages {
		if errors.Is(err, pm.err) {
			return pm.msg
		}
	}
	switch status {
	case http.StatusBadRequest:
		return msgInvalidRequest
	case http.StatusForbidden:
		return msgForbidden
	case http.StatusNotFound:
		return msgNotFound
	default:
		return msgTryAgain
	}
}

// respondError writes the {"msg": ...} body for err. Server side failures are
// logged with the given attributes and never leak their detail.
func respondError(c *gin.Context, logger *slog.Logger, err error, action string, attrs ...any) {
	status := statusFor(err)
	if logger != nil {
		args := append([]any{"action", action, "error", err, "status", status}, attrs...)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "request failed", args...)
		} else {
			logger.DebugContext(c.Request.Context(), "request rejected", args...)
		}
	}
	c.JSON(status, gin.H{"msg": publicMessage(err, status)})
}

func badRequest(c *gin.Context, msg string) {
	if msg == "" {
		msg = msgInvalidRequest
	}
	c.JSON(http.StatusBadRequest, gin.H{"msg": msg})
}
