package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ErrConnClosed is returned by Push once the client's write side is gone.
var ErrConnClosed = errors.New("connection closed")

// ErrPushTimeout is returned when the client's send buffer stays full for
// the whole push timeout. The coordinator treats it as a delivery miss.
var ErrPushTimeout = errors.New("push timed out")

// socketConn abstracts the fiber websocket connection so clients can be
// exercised in tests without a network.
type socketConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is the live connection handle stored in the Registry. Events are
// pushed through a buffered channel drained by WritePump, so a push never
// blocks on the network.
type Client struct {
	accountID int64
	conn      socketConn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	timeout   time.Duration
}

func NewClient(accountID int64, conn socketConn, sendBuffer int, pushTimeout time.Duration) *Client {
	return &Client{
		accountID: accountID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		timeout:   pushTimeout,
	}
}

func (c *Client) AccountID() int64 {
	return c.accountID
}

// Push hands msg to the write pump. Fire-and-forget: a nil return means
// "handed to the transport", not "received by the client". The timeout
// bounds how long an unhealthy connection can hold up the caller.
func (c *Client) Push(msg OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-timer.C:
		return ErrPushTimeout
	}
}

// WritePump drains the send channel onto the socket. Runs in its own
// goroutine for the lifetime of the connection.
func (c *Client) WritePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadPump reads frames until the socket fails and dispatches each one to
// handle. Events from a single client are processed in receipt order.
func (c *Client) ReadPump(handle func(Event)) {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		handle(event)
	}
}

// Close releases the socket and unblocks both pumps. Safe to call more
// than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
