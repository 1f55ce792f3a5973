package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domainauth "dmchat/internal/domain/auth"
	"dmchat/internal/infra/fanout"
)

// conn owns one socket. The read pump handles frames, the write pump is the
// only goroutine that writes to the socket.
type conn struct {
	server     *Server
	ws         *websocket.Conn
	sub        *fanout.Subscriber
	direct     chan []byte
	identity   domainauth.Identity
	credential string
}

func (c *conn) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	c.readPump(ctx)
	c.server.Hub.UnsubscribeAll(c.sub)
	wg.Wait()
	c.server.logger().Debug("ws connection closed", "user_id", c.identity.UserID, "subscriber_id", c.sub.ID())
}

func (c *conn) readPump(ctx context.Context) {
	idle := c.server.IdleTimeout
	c.ws.SetReadLimit(c.server.MaxFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(idle))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger().Debug("ws read failed", "err", err, "user_id", c.identity.UserID)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))
		if !c.handle(ctx, data) {
			return
		}
	}
}

// handle processes one frame and reports whether the connection stays open.
func (c *conn) handle(ctx context.Context, data []byte) bool {
	frame, err := c.server.parser.parse(data)
	if err != nil {
		c.server.logger().Debug("ws frame rejected", "err", err, "user_id", c.identity.UserID)
		return c.reply(ReplyBadFrame)
	}

	switch frame.Action {
	case ActionSendChat:
		payload, err := json.Marshal(Relayed{
			SenderID: int64(c.identity.UserID),
			Message:  frame.Message,
			FileURL:  frame.FileURL,
			FileType: frame.FileType,
		})
		if err != nil {
			return c.reply(ReplyBadFrame)
		}
		topic := strconv.FormatInt(frame.ReceiverID, 10)
		if err := c.server.Publisher.Publish(ctx, topic, payload); err != nil {
			c.server.logger().Warn("ws relay failed", "err", err, "topic", topic, "user_id", c.identity.UserID)
		}
		return c.reply(AckSent)

	case ActionSubscribe:
		credential := c.credential
		if frame.Token != "" {
			credential = frame.Token
		}
		if _, err := c.server.Auth.Authenticate(ctx, credential); err != nil {
			c.reply(ReplyBadSession)
			return false
		}
		c.credential = credential

		topic := strconv.FormatInt(frame.SenderID, 10)
		if err := c.server.Hub.Subscribe(c.sub, topic); err != nil {
			return false
		}
		return c.reply(fmt.Sprintf(AckSubscribed, topic))
	}
	return c.reply(ReplyBadFrame)
}

// reply queues a text frame for the write pump. A connection that cannot
// take its own acks is dropped.
func (c *conn) reply(text string) bool {
	select {
	case c.direct <- []byte(text):
		return true
	default:
		c.server.Hub.UnsubscribeAll(c.sub)
		return false
	}
}

func (c *conn) writePump() {
	ping := c.server.IdleTimeout * 9 / 10
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.direct:
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		case payload := <-c.sub.Messages():
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.sub.Done():
			c.flushDirect()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *conn) flushDirect() {
	for {
		select {
		case payload := <-c.direct:
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(kind int, payload []byte) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(kind, payload); err != nil {
		c.server.logger().Debug("ws write failed", "err", err, "user_id", c.identity.UserID)
		return false
	}
	return true
}
