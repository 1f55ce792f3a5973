package kafka

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"
)

// Deliverer hands a payload to the local subscribers of a topic.
type Deliverer interface {
	Deliver(topic string, payload []byte) int
}

// Relay publishes user-topic payloads to the shared fan-out topic. The user
// topic is the message key, so one user's events stay ordered on a partition.
type Relay struct {
	Producer *Producer
	Topic    string
	NodeID   string
}

func (r *Relay) Publish(ctx context.Context, topic string, payload []byte) error {
	return r.Producer.Send(ctx, r.Topic, topic, payload, map[string]string{HeaderSourceNode: r.NodeID})
}

// RelayHandler feeds relayed payloads into this instance's hub.
type RelayHandler struct {
	Hub    Deliverer
	Logger *slog.Logger
}

func (h RelayHandler) Handle(_ context.Context, msg *sarama.ConsumerMessage) error {
	topic := string(msg.Key)
	if topic == "" {
		// nothing to route on; mark and move on
		return nil
	}
	n := h.Hub.Deliver(topic, msg.Value)
	if h.Logger != nil {
		h.Logger.Debug("relayed payload delivered", "topic", topic, "subscribers", n, "source", header(msg, HeaderSourceNode))
	}
	return nil
}

var _ MessageHandler = RelayHandler{}
