package collab

import (
	"sync"
	"time"

	"github.com/workhive/collab/internal/logger"
	"github.com/workhive/collab/internal/protocol"
)

// Hub owns the shared mutable state of one collaboration server instance:
// the connection registry, the room directory and the per-room chat history.
// A single coarse mutex guards all three; every compound operation
// (join with its snapshots, leave plus registry removal, append plus
// recipient enumeration) runs entirely under the lock, so no goroutine can
// observe a half-applied transition. No I/O happens while the lock is held;
// callers deliver to the returned endpoints after the operation returns.
type Hub struct {
	mu       sync.Mutex
	registry *registry
	rooms    *roomDirectory
	history  *historyStore
	replay   int
	log      *logger.Logger
}

// NewHub creates a hub retaining up to historyLimit chat messages per room
// and replaying up to replay of them to each newly joined connection.
func NewHub(historyLimit, replay int, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Global()
	}
	return &Hub{
		registry: newRegistry(),
		rooms:    newRoomDirectory(),
		history:  newHistoryStore(historyLimit),
		replay:   replay,
		log:      log,
	}
}

// Stats is a point-in-time snapshot of hub occupancy
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Messages    int `json:"messages"`
}

// Departure describes a completed room exit. Remaining holds the endpoints
// still in the room; it is empty when the exit emptied the room, in which
// case the room and its history are already gone.
type Departure struct {
	ConnID    string
	RoomID    string
	Remaining []endpoint
}

/// JoinResult is the atomic snapshot taken while joining a room: the
// sanitized joiner, the other members, the chat backlog to replay, the
// peers to notify, and the departure from a previous room if the join
// implied one.
type JoinResult struct {
	Self    protocol.User
	Others  []protocol.User
	Backlog []protocol.ChatMessage
	Peers   []endpoint
	Left    *Departure
}

// Connect registers a new connection for link and returns its identifier
func (h *Hub) Connect(link Link) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn := h.registry.register(link)
	return conn.ID
}

// Known reports whether id is a live connection
func (h *Hub) Known(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.lookup(id) != nil
}

// Touch refreshes the connection's last-seen timestamp; called on every
// inbound message and on every heartbeat pong.
func (h *Hub) Touch(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registry.touch(id)
}

// Join moves the connection into roomID, leaving any different current room
// first. A connection is a member of at most one room; that invariant is
// enforced here and nowhere else.
func (h *Hub) Join(id, roomID string) (JoinResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil {
		return JoinResult{}, false
	}

	// Others stays non-nil so the membership snapshot always carries an
	// array on the wire, even for the first member of a room.
	res := JoinResult{Others: []protocol.User{}}
	if conn.ProjectID != "" && conn.ProjectID != roomID {
		res.Left = h.leaveLocked(conn, conn.ProjectID)
	}

	conn.ProjectID = roomID
	h.rooms.add(roomID, id)

	for _, mid := range h.rooms.members(roomID) {
		if mid == id {
			continue
		}
		member := h.registry.lookup(mid)
		if member == nil {
			continue
		}
		res.Others = append(res.Others, member.sanitize())
		res.Peers = append(res.Peers, endpoint{id: mid, link: member.link})
	}

	res.Backlog = h.history.recent(roomID, h.replay)
	res.Self = conn.sanitize()
	return res, true
}

// Leave removes the connection from roomID. Leaving a room the connection
// is not in is a no-op and returns nil.
func (h *Hub) Leave(id, roomID string) *Departure {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil {
		return nil
	}
	return h.leaveLocked(conn, roomID)
}

// Disconnect performs the terminal cleanup for a connection: room exit and
// registry removal as one atomic unit. Safe to call more than once; later
// calls return nil.
func (h *Hub) Disconnect(id string) *Departure {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.remove(id)
	if conn == nil {
		return nil
	}
	if conn.ProjectID == "" {
		return nil
	}
	return h.leaveLocked(conn, conn.ProjectID)
}

// leaveLocked is the single room-exit path. Caller holds h.mu.
func (h *Hub) leaveLocked(conn *Connection, roomID string) *Departure {
	if conn.ProjectID != roomID {
		return nil
	}

	emptied := h.rooms.remove(roomID, conn.ID)
	conn.ProjectID = ""

	dep := &Departure{ConnID: conn.ID, RoomID: roomID}
	if emptied {
		h.history.purge(roomID)
		h.log.Debug("room %s emptied, history purged", roomID)
		return dep
	}
	dep.Remaining = h.endpointsLocked(roomID, "")
	return dep
}

// UpdateUser merges the supplied identity fields into the connection and
// returns its sanitized record plus, when the connection is in a room, the
// other members to notify.
func (h *Hub) UpdateUser(id string, u *protocol.UserUpdate) (self protocol.User, peers []endpoint, inRoom, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil {
		return protocol.User{}, nil, false, false
	}

	h.registry.updateFields(id, u)
	self = conn.sanitize()
	if conn.ProjectID != "" {
		return self, h.endpointsLocked(conn.ProjectID, id), true, true
	}
	return self, nil, false, true
}

// AppendChat appends msg to the sender's room history and returns the
// stored message plus every member of the room, sender included. ok is
// false when the sender is unknown or not in a room.
func (h *Hub) AppendChat(id string, msg protocol.ChatMessage) (stored protocol.ChatMessage, roomID string, recipients []endpoint, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil || conn.ProjectID == "" {
		return protocol.ChatMessage{}, "", nil, false
	}

	roomID = conn.ProjectID
	msg.ProjectID = roomID
	h.history.append(roomID, msg)

	return msg, roomID, h.endpointsLocked(roomID, ""), true
}

// RoomEndpoints returns the sender's current room and its members,
// optionally excluding the sender. ok is false when the sender is unknown
// or not in a room.
func (h *Hub) RoomEndpoints(id string, excludeSelf bool) (roomID string, eps []endpoint, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil || conn.ProjectID == "" {
		return "", nil, false
	}

	exclude := ""
	if excludeSelf {
		exclude = id
	}
	return conn.ProjectID, h.endpointsLocked(conn.ProjectID, exclude), true
}

// Endpoint returns the delivery endpoint for a single connection
func (h *Hub) Endpoint(id string) (endpoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil {
		return endpoint{}, false
	}
	return endpoint{id: id, link: conn.link}, true
}

// endpointsLocked snapshots a room's membership as endpoints. Caller holds
// h.mu.
func (h *Hub) endpointsLocked(roomID, exclude string) []endpoint {
	members := h.rooms.members(roomID)
	eps := make([]endpoint, 0, len(members))
	for _, mid := range members {
		if mid == exclude {
			continue
		}
		if conn := h.registry.lookup(mid); conn != nil {
			eps = append(eps, endpoint{id: mid, link: conn.link})
		}
	}
	return eps
}

// Stale returns the ids of connections whose socket is no longer open and
// whose last activity is older than threshold. A connection with a healthy
// socket is never reported, regardless of idle time.
func (h *Hub) Stale(threshold time.Duration) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var ids []string
	for id, conn := range h.registry.conns {
		if !conn.link.Alive() && conn.LastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Members returns a snapshot of roomID's member ids
func (h *Hub) Members(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.members(roomID)
}

// CurrentRoom returns the room the connection is joined to, or ""
func (h *Hub) CurrentRoom(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.registry.lookup(id)
	if conn == nil {
		return ""
	}
	return conn.ProjectID
}

// Stats snapshots hub occupancy for the stats endpoint
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Connections: h.registry.len(),
		Rooms:       h.rooms.len(),
		Messages:    h.history.total(),
	}
}
