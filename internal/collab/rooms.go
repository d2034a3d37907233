package collab

// roomDirectory maps a project id to the set of connection ids currently
// joined to it. Rooms exist implicitly: created on first join, deleted when
// the member set empties. The owning Hub serializes access.
type roomDirectory struct {
	rooms map[string]map[string]struct{}
}

func newRoomDirectory() *roomDirectory {
	return &roomDirectory{rooms: make(map[string]map[string]struct{})}
}

// add puts connID into roomID's member set, creating the set if absent
func (d *roomDirectory) add(roomID, connID string) {
	members := d.rooms[roomID]
	if members == nil {
		members = make(map[string]struct{})
		d.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

// remove takes connID out of roomID's member set and reports whether the
// room emptied (and was deleted). Removing from a room the connection is
// not in is a no-op.
func (d *roomDirectory) remove(roomID, connID string) (emptied bool) {
	members := d.rooms[roomID]
	if members == nil {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(d.rooms, roomID)
		return true
	}
	return false
}

// members returns a snapshot copy of roomID's member set
func (d *roomDirectory) members(roomID string) []string {
	members := d.rooms[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (d *roomDirectory) len() int {
	return len(d.rooms)
}
