package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

const createAttempts = 3

// IDGenerator mints ids for new conversations.
type IDGenerator interface {
	NewConversationID() (domainchat.ConversationID, error)
}

// ProfileLookup resolves display fields for participants.
type ProfileLookup interface {
	ByIDs(ctx context.Context, ids []domainuser.ID) ([]*domainuser.User, error)
}

// Directory maps an unordered user pair to its single conversation.
type Directory struct {
	Conversations domainchat.ConversationRepository
	Profiles      ProfileLookup
	IDs           IDGenerator
	Logger        *slog.Logger
	Now           func() time.Time
}

func (d *Directory) FindPair(ctx context.Context, a, b domainuser.ID) (*domainchat.Conversation, error) {
	if !a.Valid() || !b.Valid() {
		return nil, domainchat.ErrParticipantRequired
	}
	return d.Conversations.FindPair(ctx, a, b)
}

// GetOrCreate returns the pair's conversation, creating it on first contact.
// A concurrent creator wins through the storage uniqueness constraint and the
// loser retries as a lookup.
func (d *Directory) GetOrCreate(ctx context.Context, initiator, counterpart domainuser.ID) (domainchat.ConversationID, error) {
	if initiator == counterpart {
		return "", domainchat.ErrSelfConversation
	}
	for attempt := 0; attempt < createAttempts; attempt++ {
		existing, err := d.FindPair(ctx, initiator, counterpart)
		if err == nil {
			return existing.ID, nil
		}
		if !errors.Is(err, domainchat.ErrConversationNotFound) {
			return "", fmt.Errorf("chat: find conversation: %w", err)
		}

		id, err := d.IDs.NewConversationID()
		if err != nil {
			return "", err
		}
		conversation, err := domainchat.NewConversation(id, initiator, counterpart, d.now())
		if err != nil {
			return "", err
		}
		err = d.Conversations.Create(ctx, conversation)
		if err == nil {
			if d.Logger != nil {
				d.Logger.Info("conversation created", "conversation_id", id, "user_one_id", initiator, "user_two_id", counterpart)
			}
			return id, nil
		}
		if !errors.Is(err, domainchat.ErrDuplicateConversation) {
			return "", fmt.Errorf("chat: create conversation: %w", err)
		}
		if d.Logger != nil {
			d.Logger.Debug("conversation insert lost a race, retrying as lookup", "attempt", attempt+1)
		}
	}
	return "", fmt.Errorf("chat: create conversation: %w", domainchat.ErrDuplicateConversation)
}

func (d *Directory) ListForUser(ctx context.Context, userID domainuser.ID) ([]domainchat.ConversationSummary, error) {
	conversations, err := d.Conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat: list conversations: %w", err)
	}
	ids := make([]domainuser.ID, 0, len(conversations)*2)
	for _, c := range conversations {
		ids = append(ids, c.UserOneID, c.UserTwoID)
	}
	participants, err := d.participants(ctx, lo.Uniq(ids))
	if err != nil {
		return nil, err
	}
	return lo.Map(conversations, func(c *domainchat.Conversation, _ int) domainchat.ConversationSummary {
		return domainchat.ConversationSummary{
			Conversation: *c,
			UserOne:      participantOf(participants, c.UserOneID),
			UserTwo:      participantOf(participants, c.UserTwoID),
		}
	}), nil
}

// EnsureUser fails with user.ErrNotFound for an unknown id.
func (d *Directory) EnsureUser(ctx context.Context, id domainuser.ID) error {
	found, err := d.participants(ctx, []domainuser.ID{id})
	if err != nil {
		return err
	}
	if _, ok := found[id]; !ok {
		return domainuser.ErrNotFound
	}
	return nil
}

func (d *Directory) participants(ctx context.Context, ids []domainuser.ID) (map[domainuser.ID]domainchat.Participant, error) {
	return loadParticipants(ctx, d.Profiles, ids)
}

func (d *Directory) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func loadParticipants(ctx context.Context, profiles ProfileLookup, ids []domainuser.ID) (map[domainuser.ID]domainchat.Participant, error) {
	out := make(map[domainuser.ID]domainchat.Participant, len(ids))
	if len(ids) == 0 || profiles == nil {
		return out, nil
	}
	users, err := profiles.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("chat: load participants: %w", err)
	}
	for _, u := range users {
		out[u.ID] = domainchat.Participant{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
	}
	return out, nil
}

// participantOf falls back to a bare id for accounts that no longer exist.
func participantOf(found map[domainuser.ID]domainchat.Participant, id domainuser.ID) domainchat.Participant {
	if p, ok := found[id]; ok {
		return p
	}
	return domainchat.Participant{ID: id}
}
