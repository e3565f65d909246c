// Package hub tracks live participant connections and owns outbound
// delivery: per-connection bounded queues, best-effort sends, and room
// fan-out. Delivery is fire-and-forget, ordered per connection and
// unordered across connections.
package hub

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is the write side of a duplex connection. *websocket.Conn
// satisfies it; tests substitute an in-memory recorder.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one participant's outbound channel. Events pushed onto it are
// drained by a dedicated write pump goroutine; a full buffer or a write
// failure marks the connection dead.
type Conn struct {
	id        string
	transport Transport
	send      chan []byte

	mu     sync.Mutex
	closed bool

	// onDead is invoked at most once, from the pump goroutine, when a
	// write fails.
	onDead   func()
	deadOnce sync.Once
}

func newConn(id string, t Transport, bufferSize int, onDead func()) *Conn {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Conn{
		id:        id,
		transport: t,
		send:      make(chan []byte, bufferSize),
		onDead:    onDead,
	}
}

// ID returns the participant identity bound to this connection.
func (c *Conn) ID() string {
	return c.id
}

// Push enqueues one serialized event without blocking.
//
// Postcondition: the event is queued, or an error is returned because
// the connection is closed or its buffer is full.
func (c *Conn) Push(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// Close stops the write pump and closes the transport. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the send queue onto the transport. Runs in its own
// goroutine for the life of the connection.
func (c *Conn) writePump() {
	defer func() { _ = c.transport.Close() }()
	for data := range c.send {
		if err := c.transport.WriteMessage(websocket.TextMessage, data); err != nil {
			c.deadOnce.Do(c.onDead)
			return
		}
	}
}
