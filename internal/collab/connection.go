// Package collab implements the shared state and message routing of the
// real-time collaboration server: connection registry, room membership,
// bounded chat history, envelope dispatch, fan-out and stale-connection
// eviction. All state is owned by a Hub instance so multiple servers can
// coexist in one process.
package collab

import (
	"time"

	"github.com/workhive/collab/internal/protocol"
)

// Link is the transport half of a connection as seen by the hub. Send must
// not block; delivery is best effort and a failed send is the caller's to
// log, never to retry. Alive reports whether the underlying socket is still
// open. The WebSocket implementation lives in internal/server.
type Link interface {
	Send(env *protocol.Envelope) error
	Alive() bool
	Close() error
}

// Connection is the registry record for one live session. Exactly one
// Connection exists per socket and it is never shared between sockets.
// Fields are guarded by the owning Hub's lock.
type Connection struct {
	ID        string
	Name      string
	Email     string
	Image     string
	ProjectID string // empty until the connection joins a room
	Cursor    *protocol.Cursor
	Status    protocol.PresenceStatus
	LastSeen  time.Time

	link Link
}

// sanitize projects the connection onto its public fields. The transport
// link never crosses this boundary, so it cannot leak into a serialized
// payload.
func (c *Connection) sanitize() protocol.User {
	return protocol.User{
		ID:       c.ID,
		Name:     c.Name,
		Email:    c.Email,
		Image:    c.Image,
		Cursor:   c.Cursor,
		Status:   c.Status,
		LastSeen: c.LastSeen,
	}
}

// applyUpdate merges the supplied identity fields into the connection.
// Absent fields are left untouched.
func (c *Connection) applyUpdate(u *protocol.UserUpdate) {
	if u == nil {
		return
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Image != nil {
		c.Image = *u.Image
	}
	if u.Cursor != nil {
		c.Cursor = u.Cursor
	}
	if u.Status != nil && u.Status.Valid() {
		c.Status = *u.Status
	}
}

// endpoint pairs a connection id with its transport link for delivery after
// the hub lock is released.
type endpoint struct {
	id   string
	link Link
}
