package messaging

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

type subscribeFrame struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

type websocketClient struct {
	url     string
	channel string
	handler Handler

	lock   sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebsocketClient returns a Client that reads the transcript feed for one
// channel over a websocket. The handler is invoked from a single goroutine,
// preserving per-sender order.
func NewWebsocketClient(url string, channel string, handler Handler) Client {
	return &websocketClient{
		url:     url,
		channel: channel,
		handler: handler,
	}
}

func (c *websocketClient) Login(ctx context.Context, token string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}

	if err = conn.WriteJSON(subscribeFrame{Op: "subscribe", Channel: c.channel}); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}

	c.lock.Lock()
	if c.closed {
		// Logout raced the login; discard the connection
		c.lock.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.lock.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *websocketClient) readLoop(conn *websocket.Conn) {
	for {
		// Text and binary frames both carry transcript payloads
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.lock.Lock()
			closed := c.closed
			c.lock.Unlock()
			if !closed {
				log.Warnf("side-channel read ended | error: %v, channel: %s", err, c.channel)
			}
			return
		}
		c.handler(payload)
	}
}

func (c *websocketClient) Logout() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn == nil {
		return nil
	}

	deadline := time.Now().Add(2 * time.Second)
	err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	if err != nil {
		log.Debugf("cannot send close frame | error: %v, channel: %s", err, c.channel)
	}
	return c.conn.Close()
}
