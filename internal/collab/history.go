package collab

import "github.com/workhive/collab/internal/protocol"

// historyStore keeps a bounded, insertion-ordered chat backlog per room.
// When a room's backlog exceeds the limit the oldest entries are evicted
// first. The owning Hub serializes access.
type historyStore struct {
	limit int
	rooms map[string][]protocol.ChatMessage
}

func newHistoryStore(limit int) *historyStore {
	return &historyStore{
		limit: limit,
		rooms: make(map[string][]protocol.ChatMessage),
	}
}

// append pushes msg onto roomID's backlog, evicting from the front once the
// limit is exceeded.
func (h *historyStore) append(roomID string, msg protocol.ChatMessage) {
	msgs := append(h.rooms[roomID], msg)
	if excess := len(msgs) - h.limit; excess > 0 {
		msgs = msgs[excess:]
	}
	h.rooms[roomID] = msgs
}

// recent returns a copy of up to the last n messages, oldest first
func (h *historyStore) recent(roomID string, n int) []protocol.ChatMessage {
	msgs := h.rooms[roomID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]protocol.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// purge drops a room's backlog entirely; called when the room empties
func (h *historyStore) purge(roomID string) {
	delete(h.rooms, roomID)
}

// total counts retained messages across all rooms
func (h *historyStore) total() int {
	n := 0
	for _, msgs := range h.rooms {
		n += len(msgs)
	}
	return n
}
