package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of a websocket connection the hub drives.
// *websocket.Conn from gofiber/contrib satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const writeWait = 10 * time.Second

// Client is one connected subscriber. Outbound traffic goes through send,
// drained by writePump; nothing else writes to conn.
type Client struct {
	ID   string
	conn Conn
	send chan []byte

	lastSeen atomic.Int64
	rooms    map[string]bool // guarded by Hub.mutex

	mu     sync.Mutex
	closed bool
}

func newClient(id string, conn Conn, buffer int) *Client {
	c := &Client{
		ID:    id,
		conn:  conn,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]bool),
	}
	c.touch()
	return c
}

func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastSeen.Load()))
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the client is already closed.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the write pump, which in turn closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
