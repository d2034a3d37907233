package collab

import (
	"time"

	"github.com/google/uuid"

	"github.com/workhive/collab/internal/protocol"
)

// registry tracks every live connection by its generated identifier.
// It performs no locking of its own; the owning Hub serializes access.
type registry struct {
	conns map[string]*Connection
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*Connection)}
}

// register allocates a fresh identifier and stores a new connection with
// default identity. Identifiers are UUIDv4 and never reused.
func (r *registry) register(link Link) *Connection {
	conn := &Connection{
		ID:       uuid.NewString(),
		Name:     "Anonymous",
		Status:   protocol.PresenceOnline,
		LastSeen: time.Now().UTC(),
		link:     link,
	}
	r.conns[conn.ID] = conn
	return conn
}

// lookup returns the connection for id, or nil
func (r *registry) lookup(id string) *Connection {
	return r.conns[id]
}

// updateFields merges the supplied identity fields into the stored
// connection. An unknown id is a silent no-op.
func (r *registry) updateFields(id string, u *protocol.UserUpdate) {
	if conn := r.conns[id]; conn != nil {
		conn.applyUpdate(u)
	}
}

// touch refreshes the connection's last-seen timestamp
func (r *registry) touch(id string) {
	if conn := r.conns[id]; conn != nil {
		conn.LastSeen = time.Now().UTC()
	}
}

// remove deletes the connection and returns its prior state, or nil
func (r *registry) remove(id string) *Connection {
	conn := r.conns[id]
	if conn != nil {
		delete(r.conns, id)
	}
	return conn
}

func (r *registry) len() int {
	return len(r.conns)
}
