package fanout_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dmchat/internal/infra/fanout"
)

func TestHubDeliversOnlyToTopicSubscribers(t *testing.T) {
	req := require.New(t)
	hub := fanout.NewHub(4, nil)
	defer hub.Close()

	alice, err := hub.NewSubscriber()
	req.NoError(err)
	bob, err := hub.NewSubscriber()
	req.NoError(err)
	req.NoError(hub.Subscribe(alice, "20"))
	req.NoError(hub.Subscribe(bob, "30"))

	req.Equal(1, hub.Deliver("20", []byte("hello")))
	req.Equal([]byte("hello"), <-alice.Messages())
	req.Empty(bob.Messages())

	req.Equal(0, hub.Deliver("99", []byte("nobody")))
}

func TestHubPreservesOrderPerSubscriber(t *testing.T) {
	req := require.New(t)
	hub := fanout.NewHub(8, nil)
	defer hub.Close()

	s, err := hub.NewSubscriber()
	req.NoError(err)
	req.NoError(hub.Subscribe(s, "1"))

	for _, p := range []string{"a", "b", "c"} {
		req.NoError(hub.Publish(context.Background(), "1", []byte(p)))
	}
	req.Equal("a", string(<-s.Messages()))
	req.Equal("b", string(<-s.Messages()))
	req.Equal("c", string(<-s.Messages()))
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	req := require.New(t)
	hub := fanout.NewHub(1, nil)
	defer hub.Close()

	slow, err := hub.NewSubscriber()
	req.NoError(err)
	req.NoError(hub.Subscribe(slow, "1"))
	req.NoError(hub.Subscribe(slow, "2"))

	req.Equal(1, hub.Deliver("1", []byte("first")))
	req.Equal(0, hub.Deliver("1", []byte("overflow")))

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber should be closed")
	}
	req.Zero(hub.SubscriberCount("1"))
	req.Zero(hub.SubscriberCount("2"))
	req.ErrorIs(hub.Subscribe(slow, "3"), fanout.ErrSubscriberClosed)
}

func TestHubUnsubscribe(t *testing.T) {
	req := require.New(t)
	hub := fanout.NewHub(4, nil)
	defer hub.Close()

	s, err := hub.NewSubscriber()
	req.NoError(err)
	req.NoError(hub.Subscribe(s, "1"))
	req.NoError(hub.Subscribe(s, "2"))

	hub.Unsubscribe(s, "1")
	req.Equal(0, hub.Deliver("1", []byte("x")))
	req.Equal(1, hub.Deliver("2", []byte("y")))

	hub.UnsubscribeAll(s)
	req.Equal(0, hub.Deliver("2", []byte("z")))
	<-s.Done()
}

func TestHubCloseDrainsSubscribers(t *testing.T) {
	req := require.New(t)
	hub := fanout.NewHub(4, nil)

	s, err := hub.NewSubscriber()
	req.NoError(err)
	req.NoError(hub.Subscribe(s, "1"))

	hub.Close()
	hub.Close()
	<-s.Done()
	req.Equal(0, hub.Deliver("1", []byte("late")))
	req.ErrorIs(hub.Publish(context.Background(), "1", []byte("late")), fanout.ErrHubClosed)

	_, err = hub.NewSubscriber()
	req.ErrorIs(err, fanout.ErrHubClosed)
}
