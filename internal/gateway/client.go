package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/proctorlive/backend/internal/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size; video frames are base64 blobs.
	maxMessageSize = 1 << 20

	// Outbound queue depth per connection. A full queue means a stalled
	// consumer; the connection is dropped rather than blocking the room.
	sendBufferSize = 256
)

// Client is one authenticated WebSocket connection. The {userId, role}
// binding is set at upgrade time and never changes.
type Client struct {
	ID       string
	Identity auth.Identity

	conn *websocket.Conn
	send chan []byte
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(id string, identity auth.Identity, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		log:      log,
	}
}

// TrySend queues an outbound message without blocking. Returns false when the
// client's queue is full or already closed. The mutex serializes sends with
// Close so a broadcast that raced the disconnect path cannot hit a closed
// channel.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue down; the write pump then closes the
// underlying connection, which unblocks the read loop. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send queue onto the connection and keeps the peer
// alive with pings. One writer goroutine per connection preserves the order
// messages were queued in.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
