package presence

import (
	"errors"
	"sync"
)

// ErrNotConnected is returned when the target identity has no live
// channel. Callers log and drop; delivery is never retried.
var ErrNotConnected = errors.New("presence: party not connected")

// Conn is the write side of a push channel. *websocket.Conn satisfies
// it; tests use in-memory fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Event is the envelope pushed to a connected party.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Registry maps a party identity to its current push channel.
// Registration is last-write-wins per identity.
type Registry interface {
	Register(id string, conn Conn)
	Send(id, event string, payload interface{}) error
	Unregister(id string)
}

type session struct {
	conn Conn
	mu   sync.Mutex
}

func (s *session) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds live sessions keyed by party identity.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewWSRegistry() *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*session)}
}

func (r *WSRegistry) Register(id string, conn Conn) {
	r.mu.Lock()
	prev := r.sessions[id]
	r.sessions[id] = &session{conn: conn}
	r.mu.Unlock()
	if prev != nil && prev.conn != conn {
		_ = prev.conn.Close()
	}
}

func (r *WSRegistry) Send(id, event string, payload interface{}) error {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return s.send(Event{Event: event, Data: payload})
}

func (r *WSRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Connected reports whether the identity currently has a channel.
func (r *WSRegistry) Connected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}
