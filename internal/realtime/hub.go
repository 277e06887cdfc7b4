package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one connected staff client. The send channel is owned by the
// hub; it is closed exactly once, on unregister.
type Session struct {
	ID      uuid.UUID
	StaffID uuid.UUID
	send    chan []byte
}

// NewSession allocates a session with the given send buffer.
func NewSession(staffID uuid.UUID, buffer int) *Session {
	if buffer <= 0 {
		buffer = 256
	}
	return &Session{
		ID:      uuid.New(),
		StaffID: staffID,
		send:    make(chan []byte, buffer),
	}
}

// Outbound exposes the session's send channel to the write pump.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Hub tracks live staff sessions and fans broadcast payloads out to all of
// them. Every staff member sees every event; filtering happens client-side.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[uuid.UUID]*Session)}
}

// Register adds a session to the fanout set.
func (h *Hub) Register(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session.ID] = session
}

// Unregister removes the session and closes its send channel. Safe to call
// more than once for the same session.
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[session.ID]; !ok {
		return
	}
	delete(h.sessions, session.ID)
	close(session.send)
}

// Fanout delivers the payload to every registered session. Sessions whose
// send buffer is full are dropped; a client that cannot keep up reconnects
// rather than stalling everyone else.
func (h *Hub) Fanout(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, session := range h.sessions {
		select {
		case session.send <- payload:
		default:
			delete(h.sessions, id)
			close(session.send)
		}
	}
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
