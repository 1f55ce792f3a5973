package chat

import (
	"context"
	"fmt"
	"time"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

// MessageStore owns the message lifecycle inside a conversation. It does not
// authorize callers; command handlers check ownership before calling it.
type MessageStore struct {
	Conversations domainchat.ConversationRepository
	Messages      domainchat.MessageRepository
	Profiles      ProfileLookup
	Now           func() time.Time
}

// AppendParams describes one message to persist.
type AppendParams struct {
	ConversationID domainchat.ConversationID
	SenderID       domainuser.ID
	ReceiverID     domainuser.ID
	Body           string
	Attachment     *domainchat.Attachment
}

func (s *MessageStore) Append(ctx context.Context, params AppendParams) (*domainchat.Message, error) {
	msg, err := domainchat.NewMessage(domainchat.NewMessageParams{
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		ReceiverID:     params.ReceiverID,
		Body:           params.Body,
		Attachment:     params.Attachment,
		Now:            s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("chat: append message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Message(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	return s.Messages.ByID(ctx, conversationID, id)
}

// Edit replaces the body of a message. The attachment is never touched.
func (s *MessageStore) Edit(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID, body string) (*domainchat.Message, error) {
	current, err := s.Messages.ByID(ctx, conversationID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := current.Edit(body, now); err != nil {
		return nil, err
	}
	return s.Messages.Edit(ctx, conversationID, id, current.Body, now)
}

func (s *MessageStore) Remove(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	return s.Messages.Remove(ctx, conversationID, id)
}

// MarkRead clears unread on every message readerID received in the conversation.
func (s *MessageStore) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, readerID domainuser.ID) (int64, error) {
	n, err := s.Messages.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("chat: mark read: %w", err)
	}
	return n, nil
}

func (s *MessageStore) FindByConversation(ctx context.Context, conversationID domainchat.ConversationID) (*domainchat.Thread, error) {
	conversation, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.Messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	participants, err := loadParticipants(ctx, s.Profiles, []domainuser.ID{conversation.UserOneID, conversation.UserTwoID})
	if err != nil {
		return nil, err
	}
	thread := &domainchat.Thread{
		Conversation: *conversation,
		UserOne:      participantOf(participants, conversation.UserOneID),
		UserTwo:      participantOf(participants, conversation.UserTwoID),
		Messages:     make([]domainchat.Message, 0, len(messages)),
	}
	for _, m := range messages {
		thread.Messages = append(thread.Messages, *m)
	}
	return thread, nil
}

func (s *MessageStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
