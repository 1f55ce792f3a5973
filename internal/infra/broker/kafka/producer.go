package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

const (
	TopicChatFanout  = "chat.fanout.v1"
	TopicUserEvents  = "user.events.v1"
	HeaderEventName  = "event-name"
	HeaderSourceNode = "source-node"
)

// Topic prefixes a logical topic name, e.g. "staging." + "chat.fanout.v1".
func Topic(prefix, name string) string {
	return prefix + name
}

// Producer wraps a sarama sync producer; every send waits for all in-sync
// replicas.
type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	// idempotence requires a single in-flight request per connection
	cfg.Net.MaxOpenRequests = 1
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync}, nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(sync sarama.SyncProducer) *Producer {
	return &Producer{sync: sync}
}

func (p *Producer) Send(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p == nil || p.sync == nil {
		return ErrProducerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var hs []sarama.RecordHeader
	for k, v := range headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
	_, _, err := p.sync.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	return p.sync.Close()
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
