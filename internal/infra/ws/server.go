package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domainauth "dmchat/internal/domain/auth"
	"dmchat/internal/infra/fanout"
)

const (
	DefaultIdleTimeout = 60 * time.Second
	DefaultMaxFrame    = 16 << 20
	writeWait          = 10 * time.Second
	directBuffer       = 16
)

// Authenticator resolves a bearer credential into the caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domainauth.Identity, error)
}

// Publisher routes a payload to every subscriber of a user topic, possibly
// across instances.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Server upgrades authenticated requests to sockets and bridges them to the hub.
type Server struct {
	Auth        Authenticator
	Hub         *fanout.Hub
	Publisher   Publisher
	Logger      *slog.Logger
	IdleTimeout time.Duration
	MaxFrame    int64
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool

	once     sync.Once
	upgrader websocket.Upgrader
	parser   frameParser
	conns    sync.WaitGroup
}

func (s *Server) init() {
	s.once.Do(func() {
		if s.IdleTimeout <= 0 {
			s.IdleTimeout = DefaultIdleTimeout
		}
		if s.MaxFrame <= 0 {
			s.MaxFrame = DefaultMaxFrame
		}
		if s.Publisher == nil {
			s.Publisher = s.Hub
		}
		check := s.CheckOrigin
		if check == nil {
			check = func(*http.Request) bool { return true }
		}
		s.upgrader = websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     check,
		}
		s.parser = newFrameParser()
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.init()
	credential := credentialFrom(r)
	identity, err := s.Auth.Authenticate(r.Context(), credential)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Please provide token"
		if !errors.Is(err, domainauth.ErrTokenRequired) {
			msg = ReplyBadSession
		}
		http.Error(w, msg, status)
		return
	}

	sub, err := s.Hub.NewSubscriber()
	if err != nil {
		http.Error(w, "socket server is shutting down", http.StatusServiceUnavailable)
		return
	}
	for _, topic := range []string{identity.UserID.String(), TopicNotification} {
		if err := s.Hub.Subscribe(sub, topic); err != nil {
			s.Hub.UnsubscribeAll(sub)
			http.Error(w, "socket server is shutting down", http.StatusServiceUnavailable)
			return
		}
	}

	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Hub.UnsubscribeAll(sub)
		s.logger().Warn("ws upgrade failed", "err", err, "user_id", identity.UserID)
		return
	}

	c := &conn{
		server:     s,
		ws:         raw,
		sub:        sub,
		direct:     make(chan []byte, directBuffer),
		identity:   identity,
		credential: credential,
	}
	s.conns.Add(1)
	go func() {
		defer s.conns.Done()
		c.run()
	}()
}

// Wait blocks until every connection goroutine has returned. Close the hub
// first to make them exit.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func credentialFrom(r *http.Request) string {
	if token := domainauth.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}
