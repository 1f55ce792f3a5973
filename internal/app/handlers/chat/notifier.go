package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	domainchat "dmchat/internal/domain/chat"
)

// Notifier pushes chat events to the recipient's topic. Delivery is best
// effort and failures never reach the writer.
type Notifier struct {
	Publisher Publisher
	Logger    *slog.Logger
}

func (n *Notifier) Notify(ctx context.Context, note domainchat.Notification) {
	if n == nil || n.Publisher == nil || note == nil {
		return
	}
	payload, err := json.Marshal(note.Envelope())
	if err != nil {
		n.log().Error("chat event encode failed", "event", note.EventName(), "err", err)
		return
	}
	topic := note.Recipient().String()
	if err := n.Publisher.Publish(ctx, topic, payload); err != nil {
		n.log().Warn("chat event publish failed", "event", note.EventName(), "topic", topic, "conversation_id", note.AggregateID(), "err", err)
	}
}

func (n *Notifier) log() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
