package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"dmchat/internal/app/services/users"
	domainuser "dmchat/internal/domain/user"
)

// AccountEventsProducer writes account lifecycle events keyed by user id.
type AccountEventsProducer struct {
	Producer *Producer
	Topic    string
}

func (p *AccountEventsProducer) AccountDeleted(ctx context.Context, event domainuser.Deleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", event.EventName(), err)
	}
	return p.Producer.Send(ctx, p.Topic, event.AggregateID(), payload, map[string]string{HeaderEventName: event.EventName()})
}

// Inbox deduplicates redelivered events.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// AccountEventsHandler purges what a deleted account left behind. A purge
// failure is logged by RunPurge and the message is still committed.
type AccountEventsHandler struct {
	Purger  users.AttachmentPurger
	Inbox   Inbox
	Logger  *slog.Logger
	Timeout time.Duration
}

func (h AccountEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	name := header(msg, HeaderEventName)
	if name != "" && name != domainuser.EventDeleted {
		return nil
	}
	var event domainuser.Deleted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.log().Error("account event decode failed", "offset", msg.Offset, "err", err)
		return nil
	}
	if !event.UserID.Valid() {
		h.log().Warn("account event without user id", "offset", msg.Offset)
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, event.EventName()+":"+event.AggregateID())
		if err != nil {
			return err
		}
		if seen {
			h.log().Debug("account event already handled", "user_id", event.UserID)
			return nil
		}
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	users.RunPurge(ctx, h.Purger, h.log(), event.UserID)
	return nil
}

func (h AccountEventsHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var (
	_ users.AccountEvents = (*AccountEventsProducer)(nil)
	_ MessageHandler      = AccountEventsHandler{}
)
