package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry maps participant identities to their live connections and
// holds the non-owning participant→room index. All methods are safe for
// concurrent use.
//
// The registry never blocks on a remote peer: Send and Broadcast push
// onto bounded per-connection queues, and any transport failure is
// treated as an implicit disconnect routed through the drop handler.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	roomOf  map[string]string          // participant → room, non-owning index
	members map[string]map[string]bool // room → participant set

	bufferSize int
	logger     *zap.Logger

	// onDrop receives the identity of a connection that failed mid-send
	// and has already been removed; it runs the same cleanup as an
	// explicit disconnect.
	onDrop func(id string)
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(bufferSize int, logger *zap.Logger) *Registry {
	return &Registry{
		conns:      make(map[string]*Conn),
		roomOf:     make(map[string]string),
		members:    make(map[string]map[string]bool),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// SetDropHandler installs the cleanup cascade for implicit disconnects.
// Must be called before the first Connect.
func (r *Registry) SetDropHandler(fn func(id string)) {
	r.onDrop = fn
}

// Connect registers a participant's transport and starts its write
// pump. An existing connection under the same identity is closed first.
func (r *Registry) Connect(id string, t Transport) *Conn {
	c := newConn(id, t, r.bufferSize, func() { r.drop(id) })

	r.mu.Lock()
	if old, ok := r.conns[id]; ok {
		old.Close()
	}
	r.conns[id] = c
	total := len(r.conns)
	r.mu.Unlock()

	go c.writePump()

	r.logger.Info("participant connected",
		zap.String("participant", id),
		zap.Int("active_connections", total),
	)
	return c
}

// Disconnect removes and closes a participant's connection. The room
// index entry survives until the dispatcher finishes its leave cascade.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if ok {
		c.Close()
		r.logger.Info("participant disconnected",
			zap.String("participant", id),
			zap.Int("active_connections", total),
		)
	}
}

// Send delivers one event to a single participant, best-effort. A push
// failure treats the target as implicitly disconnected and triggers the
// same cleanup as an explicit disconnect.
func (r *Registry) Send(id string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshalling event", zap.Error(err))
		return
	}
	r.push(id, data)
}

// Broadcast delivers one event to every participant currently in the
// room, except the excluded identity (empty string excludes nobody).
func (r *Registry) Broadcast(roomID string, event any, exclude string) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshalling event", zap.Error(err))
		return
	}

	r.mu.RLock()
	ids := make([]string, 0, len(r.members[roomID]))
	for id := range r.members[roomID] {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.push(id, data)
	}
}

func (r *Registry) push(id string, data []byte) {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.Push(data); err != nil {
		r.logger.Warn("send failed, treating as disconnect",
			zap.String("participant", id),
			zap.Error(err),
		)
		r.drop(id)
	}
}

// drop removes a dead connection and kicks off the disconnect cascade
// on a fresh goroutine, so a failure discovered mid-broadcast cannot
// deadlock against a held room lock.
func (r *Registry) drop(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	c.Close()
	if r.onDrop != nil {
		go r.onDrop(id)
	}
}

// BindRoom records which room a participant occupies.
//
// Postcondition: RoomOf(id) returns roomID; the participant appears in
// the room's broadcast set. Returns an error if already bound, keeping
// a participant in at most one room at a time.
func (r *Registry) BindRoom(id, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.roomOf[id]; ok {
		return fmt.Errorf("participant %s already occupies room %s", id, existing)
	}
	r.roomOf[id] = roomID
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]bool)
	}
	r.members[roomID][id] = true
	return nil
}

// UnbindRoom clears a participant's room index entry.
func (r *Registry) UnbindRoom(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.roomOf[id]
	if !ok {
		return
	}
	delete(r.roomOf, id)
	if set, ok := r.members[roomID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
}

// RoomOf returns the room the participant currently occupies.
func (r *Registry) RoomOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[id]
	return roomID, ok
}

// ConnCount returns the number of live connections.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
