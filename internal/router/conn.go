package router

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// safeConn serializes writes to one websocket connection, so a single
// sender's frames are delivered to its peer in order (spec.md §5's
// per-peer outbound ordering guarantee) even when multiple goroutines
// (the read loop and the registry's fan-out) write concurrently.
type safeConn struct {
	*websocket.Conn
	mu            sync.Mutex
	writeDeadline time.Duration
}

func newSafeConn(c *websocket.Conn, writeDeadline time.Duration) *safeConn {
	return &safeConn{Conn: c, writeDeadline: writeDeadline}
}

// Send implements registry.Sender.
func (c *safeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeDeadline > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	}
	return c.Conn.WriteJSON(v)
}

// Close implements registry.Sender.
func (c *safeConn) Close() error {
	return c.Conn.Close()
}

// WritePing implements keepalive.Writer, sharing this connection's write
// mutex with Send so the keepalive monitor's pings can never interleave with
// a concurrent frame write on the same underlying websocket.Conn.
func (c *safeConn) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeDeadline > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	}
	return c.Conn.WriteMessage(websocket.PingMessage, []byte{})
}
