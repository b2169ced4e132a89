package gateway

import (
	"log/slog"
	"sync"

	"github.com/proctorlive/backend/internal/protocol"
)

// Sender is the outbound half of a connection as the router sees it.
type Sender interface {
	TrySend(data []byte) bool
	Close()
}

// room is one session's broadcast group: a single publisher plus its
// subscribers, all by connection id.
type room struct {
	publisher   string
	subscribers map[string]struct{}
}

// Router maps sessions to the connections subscribed to them and performs all
// fan-out. It is the only component that sends to more than one connection at
// a time. Sends are non-blocking: a subscriber whose queue is full is dropped
// so it cannot stall delivery to the rest of the room.
type Router struct {
	mu    sync.RWMutex
	conns map[string]Sender
	rooms map[string]*room
	log   *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		conns: make(map[string]Sender),
		rooms: make(map[string]*room),
		log:   log,
	}
}

// Register makes a connection addressable. Called once per connection after a
// successful upgrade.
func (r *Router) Register(connID string, s Sender) {
	r.mu.Lock()
	r.conns[connID] = s
	total := len(r.conns)
	r.mu.Unlock()
	r.log.Debug("connection registered", "conn", connID, "total", total)
}

// Unregister removes a connection from the table and from every room it was
// subscribed to.
func (r *Router) Unregister(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	for _, rm := range r.rooms {
		delete(rm.subscribers, connID)
	}
	total := len(r.conns)
	r.mu.Unlock()
	r.log.Debug("connection unregistered", "conn", connID, "total", total)
}

// OpenRoom creates the broadcast group for a session with its publisher.
func (r *Router) OpenRoom(sessionID, publisherConnID string) {
	r.mu.Lock()
	r.rooms[sessionID] = &room{
		publisher:   publisherConnID,
		subscribers: make(map[string]struct{}),
	}
	r.mu.Unlock()
}

// CloseRoom drops a session's broadcast group. Subscribed connections stay
// registered; only the grouping goes away.
func (r *Router) CloseRoom(sessionID string) {
	r.mu.Lock()
	delete(r.rooms, sessionID)
	r.mu.Unlock()
}

// Join adds a connection to a session's subscriber set. Idempotent; a no-op
// when the room does not exist.
func (r *Router) Join(sessionID, connID string) {
	r.mu.Lock()
	if rm, ok := r.rooms[sessionID]; ok {
		rm.subscribers[connID] = struct{}{}
	}
	r.mu.Unlock()
}

// Leave removes a connection from a session's subscriber set. Idempotent.
func (r *Router) Leave(sessionID, connID string) {
	r.mu.Lock()
	if rm, ok := r.rooms[sessionID]; ok {
		delete(rm.subscribers, connID)
	}
	r.mu.Unlock()
}

// SubscriberCount reports the size of a session's subscriber set.
func (r *Router) SubscriberCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.rooms[sessionID]; ok {
		return len(rm.subscribers)
	}
	return 0
}

// SendTo delivers one event to one connection. No-op for unknown ids.
func (r *Router) SendTo(connID, event string, payload any) {
	data := protocol.Encode(event, payload)
	r.mu.RLock()
	s, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if !s.TrySend(data) {
		r.dropSlow(connID, s)
	}
}

// BroadcastToSession delivers an event to a session's publisher and all of
// its subscribers, except excludeConnID. Unknown sessions are a no-op.
func (r *Router) BroadcastToSession(sessionID, event string, payload any, excludeConnID string) {
	data := protocol.Encode(event, payload)
	r.mu.RLock()
	rm, ok := r.rooms[sessionID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	targets := make(map[string]Sender, len(rm.subscribers)+1)
	if rm.publisher != excludeConnID {
		if s, ok := r.conns[rm.publisher]; ok {
			targets[rm.publisher] = s
		}
	}
	for connID := range rm.subscribers {
		if connID == excludeConnID {
			continue
		}
		if s, ok := r.conns[connID]; ok {
			targets[connID] = s
		}
	}
	r.mu.RUnlock()

	for connID, s := range targets {
		if !s.TrySend(data) {
			r.dropSlow(connID, s)
		}
	}
}

// BroadcastGlobal delivers an event to every registered connection. Reserved
// for session-discovery metadata only.
func (r *Router) BroadcastGlobal(event string, payload any) {
	data := protocol.Encode(event, payload)
	r.mu.RLock()
	targets := make(map[string]Sender, len(r.conns))
	for connID, s := range r.conns {
		targets[connID] = s
	}
	r.mu.RUnlock()

	for connID, s := range targets {
		if !s.TrySend(data) {
			r.dropSlow(connID, s)
		}
	}
}

// dropSlow disconnects a connection whose send queue is full. Its read loop
// will then run the normal disconnect path.
func (r *Router) dropSlow(connID string, s Sender) {
	r.log.Warn("dropping slow connection", "conn", connID)
	r.Unregister(connID)
	s.Close()
}
