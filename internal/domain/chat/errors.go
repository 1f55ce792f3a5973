package chat

import (
	"errors"

	"dmchat/internal/domain/user"
)

var (
	ErrConversationNotFound  = errors.New("chat: conversation not found")
	ErrMessageNotFound       = errors.New("chat: message not found")
	ErrEmptyMessage          = errors.New("chat: message body or attachment is required")
	ErrNotMessageOwner       = errors.New("chat: only the sender may change this message")
	ErrNotParticipant        = errors.New("chat: caller is not a participant of this conversation")
	ErrSelfConversation      = errors.New("chat: cannot start a conversation with yourself")
	ErrParticipantRequired   = errors.New("chat: both participants are required")
	ErrDuplicateConversation = errors.New("chat: conversation already exists for this pair")
	ErrInvalidConversationID = errors.New("chat: invalid conversation id")
	ErrInvalidMessageID      = errors.New("chat: invalid message id")
)

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrSelfConversation) ||
		errors.Is(err, ErrParticipantRequired) ||
		errors.Is(err, ErrInvalidConversationID) ||
		errors.Is(err, ErrInvalidMessageID) ||
		errors.Is(err, user.ErrInvalidID) ||
		errors.Is(err, user.ErrIDRequired)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotMessageOwner) || errors.Is(err, ErrNotParticipant)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, user.ErrNotFound)
}
