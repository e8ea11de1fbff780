package realtime

import (
	"sync"

	"github.com/openbrgy/portal/internal/models"
)

// Event is what goes over the wire to a connected client.
type Event struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Conn is the subset of a websocket connection the registry needs. Kept as an
// interface so fan-out can be tested without network sockets.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Registry tracks live notification sessions per recipient. It is an
// explicit, dependency-injected service with a lifecycle: created at server
// start, shut down with the server. Push is best effort; a recipient without
// sessions simply gets nothing, the durable notification row remains
// queryable by polling.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[uint64]Conn
	nextID   uint64
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[uint64]Conn)}
}

// Add registers a session for a recipient and returns its session id.
func (r *Registry) Add(recipientID string, c Conn) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = c.Close()
		return 0
	}
	r.nextID++
	id := r.nextID
	if r.sessions[recipientID] == nil {
		r.sessions[recipientID] = make(map[uint64]Conn)
	}
	r.sessions[recipientID][id] = c
	return id
}

// Remove drops a session. Safe to call for already-removed sessions.
func (r *Registry) Remove(recipientID string, sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.sessions[recipientID]
	if conns == nil {
		return
	}
	delete(conns, sessionID)
	if len(conns) == 0 {
		delete(r.sessions, recipientID)
	}
}

// Push writes the event to every live session of the recipient and returns
// how many deliveries succeeded. Sessions that fail to write are dropped;
// their clients reconnect or fall back to polling.
func (r *Registry) Push(recipientID string, ev Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delivered := 0
	for id, c := range r.sessions[recipientID] {
		if err := c.WriteJSON(ev); err != nil {
			_ = c.Close()
			delete(r.sessions[recipientID], id)
			continue
		}
		delivered++
	}
	if len(r.sessions[recipientID]) == 0 {
		delete(r.sessions, recipientID)
	}
	return delivered
}

// Sessions reports the number of live sessions for a recipient.
func (r *Registry) Sessions(recipientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[recipientID])
}

// Shutdown closes every session and rejects further registrations.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for recipient, conns := range r.sessions {
		for _, c := range conns {
			_ = c.Close()
		}
		delete(r.sessions, recipient)
	}
}
