package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"dmchat/internal/app/services/users"
	"dmchat/internal/infra/broker/kafka"
	"dmchat/internal/infra/config"
	"dmchat/internal/infra/fanout"
)

// purgeTimeout bounds one account purge run by the events consumer.
const purgeTimeout = 5 * time.Minute

// broker holds the optional Kafka wiring. Every field is nil when no brokers
// are configured.
type broker struct {
	cfg           config.Config
	hub           *fanout.Hub
	producer      *kafka.Producer
	relay         *kafka.Relay
	accountEvents *kafka.AccountEventsProducer
	consumers     []*kafka.Consumer
	wg            sync.WaitGroup
}

func openBroker(cfg config.Config, hub *fanout.Hub, logger *slog.Logger) (*broker, error) {
	b := &broker{cfg: cfg, hub: hub}
	if !cfg.KafkaEnabled() {
		return b, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return nil, err
	}
	nodeID := uuid.NewString()
	b.producer = producer
	b.relay = &kafka.Relay{
		Producer: producer,
		Topic:    kafka.Topic(cfg.KafkaTopicPrefix, kafka.TopicChatFanout),
		NodeID:   nodeID,
	}
	b.accountEvents = &kafka.AccountEventsProducer{
		Producer: producer,
		Topic:    kafka.Topic(cfg.KafkaTopicPrefix, kafka.TopicUserEvents),
	}
	logger.Info("kafka relay enabled", "brokers", cfg.KafkaBrokers, "node_id", nodeID)
	return b, nil
}

// start launches the relay consumer, which uses a group unique to this
// instance so every instance sees every payload, and the account events
// consumer, which shares the configured group.
func (b *broker) start(ctx context.Context, purger users.AttachmentPurger, inbox kafka.Inbox, logger *slog.Logger) {
	if b.relay == nil {
		return
	}
	relayLogger := logger.With("component", "kafka-relay")
	b.run(ctx, relayLogger, b.cfg.KafkaGroupID+".relay."+b.relay.NodeID, kafka.ConsumerConfig(true),
		kafka.RelayHandler{Hub: b.hub, Logger: relayLogger}, b.relay.Topic)

	eventsLogger := logger.With("component", "kafka-account-events")
	b.run(ctx, eventsLogger, b.cfg.KafkaGroupID+".account-events", kafka.ConsumerConfig(false),
		kafka.AccountEventsHandler{Purger: purger, Inbox: inbox, Logger: eventsLogger, Timeout: purgeTimeout}, b.accountEvents.Topic)
}

func (b *broker) run(ctx context.Context, logger *slog.Logger, group string, cfg *sarama.Config, handler kafka.MessageHandler, topic string) {
	consumer, err := kafka.NewConsumer(b.cfg.KafkaBrokers, group, cfg, handler, logger)
	if err != nil {
		logger.Error("kafka consumer start failed", "group", group, "error", err)
		return
	}
	b.consumers = append(b.consumers, consumer)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := consumer.Run(ctx, []string{topic}); err != nil {
			logger.Error("kafka consumer stopped", "group", group, "error", err)
		}
	}()
}

func (b *broker) wait() {
	b.wg.Wait()
}

func (b *broker) close(logger *slog.Logger) {
	for _, c := range b.consumers {
		if err := c.Close(); err != nil {
			logger.Warn("kafka consumer close failed", "error", err)
		}
	}
	if err := b.producer.Close(); err != nil {
		logger.Warn("kafka producer close failed", "error", err)
	}
}
