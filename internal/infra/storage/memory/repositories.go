package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

// ConversationRepository keeps conversations in memory and enforces the same
// pair uniqueness the persistent adapters get from their unique index.
type ConversationRepository struct {
	mu     sync.RWMutex
	items  map[domainchat.ConversationID]*domainchat.Conversation
	byPair map[string]domainchat.ConversationID
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		items:  make(map[domainchat.ConversationID]*domainchat.Conversation),
		byPair: make(map[string]domainchat.ConversationID),
	}
}

func (r *ConversationRepository) FindPair(ctx context.Context, a, b domainuser.ID) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if (c.UserOneID == a && c.UserTwoID == b) || (c.UserOneID == b && c.UserTwoID == a) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domainchat.ErrConversationNotFound
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainchat.Conversation) error {
	if c == nil {
		return domainchat.ErrParticipantRequired
	}
	key := c.PairKey()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPair[key]; ok {
		return domainchat.ErrDuplicateConversation
	}
	if _, ok := r.items[c.ID]; ok {
		return domainchat.ErrDuplicateConversation
	}
	copied := *c
	r.items[c.ID] = &copied
	r.byPair[key] = c.ID
	return nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainchat.Conversation, 0)
	for _, c := range r.items {
		if c.Involves(userID) {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MessageRepository keeps messages per conversation in insertion order.
type MessageRepository struct {
	mu     sync.RWMutex
	seq    int64
	byConv map[domainchat.ConversationID][]*domainchat.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		byConv: make(map[domainchat.ConversationID][]*domainchat.Message),
	}
}

func (r *MessageRepository) Append(ctx context.Context, m *domainchat.Message) error {
	if m == nil {
		return domainchat.ErrEmptyMessage
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = domainchat.MessageID(r.seq)
	r.byConv[m.ConversationID] = append(r.byConv[m.ConversationID], m.Clone())
	return nil
}

func (r *MessageRepository) ByID(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(conversationID, id)
	if idx < 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	return r.byConv[conversationID][idx].Clone(), nil
}

func (r *MessageRepository) Edit(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID, body string, at time.Time) (*domainchat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(conversationID, id)
	if idx < 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	m := r.byConv[conversationID][idx]
	m.Body = body
	m.Edited = true
	m.UpdatedAt = at.UTC()
	return m.Clone(), nil
}

func (r *MessageRepository) Remove(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(conversationID, id)
	if idx < 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	list := r.byConv[conversationID]
	removed := list[idx]
	r.byConv[conversationID] = append(list[:idx:idx], list[idx+1:]...)
	return removed, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, readerID domainuser.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for _, m := range r.byConv[conversationID] {
		if m.SenderID != readerID && m.Unread {
			m.Unread = false
			changed++
		}
	}
	return changed, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID domainchat.ConversationID) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byConv[conversationID]
	out := make([]*domainchat.Message, 0, len(list))
	for _, m := range list {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (r *MessageRepository) AttachmentsForUser(ctx context.Context, userID domainuser.ID) ([]domainchat.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domainchat.Attachment
	for _, list := range r.byConv {
		for _, m := range list {
			if (m.SenderID == userID || m.ReceiverID == userID) && m.HasAttachment() {
				out = append(out, *m.Attachment)
			}
		}
	}
	return out, nil
}

// indexOf must be called with the lock held.
func (r *MessageRepository) indexOf(conversationID domainchat.ConversationID, id domainchat.MessageID) int {
	for i, m := range r.byConv[conversationID] {
		if m.ID == id {
			return i
		}
	}
	return -1
}

var (
	_ domainchat.ConversationRepository = (*ConversationRepository)(nil)
	_ domainchat.MessageRepository      = (*MessageRepository)(nil)
)
