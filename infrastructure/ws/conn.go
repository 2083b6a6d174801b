// Package ws adapts gorilla WebSocket connections to the relay's channel
// abstraction and exposes the chat upgrade endpoint.
package ws

import (
	goerrors "errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campus-connect/errors"
)

// Channel wraps one WebSocket connection. The write mutex serializes
// outbound frames: broadcasts from other sessions and feedback from the own
// receive loop may send concurrently.
type Channel struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	sendTimeout time.Duration
}

func NewChannel(conn *websocket.Conn, sendTimeout time.Duration) *Channel {
	return &Channel{conn: conn, sendTimeout: sendTimeout}
}

// Receive blocks until the next text frame. Normal closure and local
// teardown surface as errors.ErrChannelClosed; anything else is an I/O or
// protocol failure.
func (c *Channel) Receive() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return nil, errors.ErrChannelClosed
		}
		return nil, err
	}
	return payload, nil
}

// Send writes one text frame. The deadline bounds how long one slow
// recipient can hold its own delivery goroutine during a broadcast.
func (c *Channel) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.sendTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame with the given code, then drops the connection.
func (c *Channel) Close(code int) error {
	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	c.writeMu.Unlock()

	return c.conn.Close()
}

func isClosed(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	if goerrors.Is(err, net.ErrClosed) {
		return true
	}
	// gorilla sometimes reports these as plain errors
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent")
}
