package fanout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrHubClosed        = errors.New("fanout: hub closed")
	ErrSubscriberClosed = errors.New("fanout: subscriber closed")
)

const DefaultBufferSize = 64

type Set map[*Subscriber]struct{}

// Subscriber is one consumer of the hub, usually a socket connection. Payloads
// are queued in a bounded buffer; a subscriber that falls behind is closed.
type Subscriber struct {
	id        uint64
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscriber) ID() uint64 {
	return s.id
}

// Messages yields queued payloads in publish order.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Done is closed once the hub drops the subscriber.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Hub routes payloads to subscribers by topic. Topics are user ids.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]Set
	membership map[*Subscriber]map[string]struct{}
	closed     bool
	bufferSize int
	nextID     atomic.Uint64
	logger     *slog.Logger
}

func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics:     make(map[string]Set),
		membership: make(map[*Subscriber]map[string]struct{}),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// NewSubscriber registers a subscriber with no topics.
func (h *Hub) NewSubscriber() (*Subscriber, error) {
	s := &Subscriber{
		id:   h.nextID.Add(1),
		send: make(chan []byte, h.bufferSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.close()
		return nil, ErrHubClosed
	}
	h.membership[s] = make(map[string]struct{})
	return s, nil
}

func (h *Hub) Subscribe(s *Subscriber, topic string) error {
	if s == nil || topic == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	topics, ok := h.membership[s]
	if !ok || s.closed() {
		return ErrSubscriberClosed
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(Set)
	}
	h.topics[topic][s] = struct{}{}
	topics[topic] = struct{}{}
	return nil
}

func (h *Hub) Unsubscribe(s *Subscriber, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(s, topic)
}

// UnsubscribeAll removes the subscriber from every topic and closes it.
func (h *Hub) UnsubscribeAll(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(s)
}

// Deliver queues payload for every subscriber of topic and returns how many
// accepted it. Zero means the payload was dropped.
func (h *Hub) Deliver(topic string, payload []byte) int {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}
	members := make([]*Subscriber, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	delivered := 0
	var slow []*Subscriber
	for _, s := range members {
		select {
		case <-s.done:
			continue
		default:
		}
		select {
		case s.send <- payload:
			delivered++
		default:
			slow = append(slow, s)
		}
	}
	if len(slow) > 0 {
		h.mu.Lock()
		for _, s := range slow {
			h.drop(s)
		}
		h.mu.Unlock()
		for _, s := range slow {
			h.logger.Warn("fanout subscriber dropped: buffer full", "subscriber_id", s.id, "topic", topic)
		}
	}
	return delivered
}

// Publish satisfies the notifier's publisher port for a single-node deployment.
// It fails with ErrHubClosed after Close; a topic without subscribers is not
// an error.
func (h *Hub) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.isClosed() {
		return ErrHubClosed
	}
	if n := h.Deliver(topic, payload); n == 0 {
		h.logger.Debug("fanout publish had no subscribers", "topic", topic)
	}
	return nil
}

// SubscriberCount reports how many subscribers listen on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close drops every subscriber. Later deliveries reach nobody and later
// publishes fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.membership {
		h.drop(s)
	}
}

// drop must be called with the write lock held.
func (h *Hub) drop(s *Subscriber) {
	for topic := range h.membership[s] {
		h.detach(s, topic)
	}
	delete(h.membership, s)
	s.close()
}

// detach must be called with the write lock held.
func (h *Hub) detach(s *Subscriber, topic string) {
	if members, ok := h.topics[topic]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.membership[s]; ok {
		delete(topics, topic)
	}
}
