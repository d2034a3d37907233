package protocol

import (
	"encoding/json"
	"time"
)

// PresenceStatus is a user's availability state
type PresenceStatus string

const (
	PresenceOnline PresenceStatus = "online"
	PresenceAway   PresenceStatus = "away"
	PresenceBusy   PresenceStatus = "busy"
)

// Valid reports whether s is one of the known availability states
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy:
		return true
	}
	return false
}

// Cursor is a user's current edit location
type Cursor struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// User is the public projection of a connection's identity, safe to
// serialize into presence payloads. The underlying transport handle is
// deliberately not representable here.
type User struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Image    string         `json:"image,omitempty"`
	Cursor   *Cursor        `json:"cursor,omitempty"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}

// UserUpdate carries the client-asserted identity fields of a
// presence/user_updated message. Pointer fields distinguish "not supplied"
// from an explicit empty value.
type UserUpdate struct {
	Name   *string         `json:"name,omitempty"`
	Email  *string         `json:"email,omitempty"`
	Image  *string         `json:"image,omitempty"`
	Cursor *Cursor         `json:"cursor,omitempty"`
	Status *PresenceStatus `json:"status,omitempty"`
}

// PresenceListPayload is the membership snapshot sent to a joining
// connection. Users is always present on the wire, empty or not.
type PresenceListPayload struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// PresencePayload covers both inbound presence requests (join_project,
// leave_project, user_updated) and outbound presence notifications
// (user_joined, user_left).
type PresencePayload struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId,omitempty"`
	User      *User       `json:"user,omitempty"`
	Update    *UserUpdate `json:"-"`
	Users     []User      `json:"users,omitempty"`
	UserID    string      `json:"userId,omitempty"`
}

// presenceWire mirrors PresencePayload for decoding: the inbound "user"
// field is a partial update, not a full User record.
type presenceWire struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId,omitempty"`
	User      *UserUpdate `json:"user,omitempty"`
	UserID    string      `json:"userId,omitempty"`
}

// DecodePresence parses an inbound presence payload
func DecodePresence(raw json.RawMessage) (*PresencePayload, error) {
	var w presenceWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &PresencePayload{
		Type:      w.Type,
		ProjectID: w.ProjectID,
		Update:    w.User,
		UserID:    w.UserID,
	}, nil
}

// ChatMessage is an immutable chat record appended to a room's history
type ChatMessage struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Role      string        `json:"role"` // user, agent or system
	AgentID   string        `json:"agentId,omitempty"`
	UserID    string        `json:"userId,omitempty"`
	ProjectID string        `json:"projectId,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  *ChatMetadata `json:"metadata,omitempty"`
}

// ChatMetadata carries optional attachments on a chat message
type ChatMetadata struct {
	Suggestions []json.RawMessage `json:"suggestions,omitempty"`
	Files       []string          `json:"files,omitempty"`
	Type        string            `json:"type,omitempty"` // code, text, suggestion or error
}

// HistoryPayload replays recent chat backlog to a newly joined connection
type HistoryPayload struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

// Position is a zero-based location within a file
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a half-open [start, end) span within a file
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Edit operation kinds
const (
	EditInsert  = "insert"
	EditDelete  = "delete"
	EditReplace = "replace"
)

// EditOperation is the payload of an edit envelope
type EditOperation struct {
	Type      string    `json:"type"` // insert, delete or replace
	File      string    `json:"file"`
	Range     Range     `json:"range"`
	Content   string    `json:"content,omitempty"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusPayload is an inbound status update. Clients may attach arbitrary
// extra fields; they are preserved and echoed to the room.
type StatusPayload struct {
	Status PresenceStatus
	Extra  map[string]interface{}
}

// DecodeStatus parses an inbound status payload, keeping unknown fields
func DecodeStatus(raw json.RawMessage) (*StatusPayload, error) {
	extra := make(map[string]interface{})
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, err
	}

	p := &StatusPayload{Extra: extra}
	if s, ok := extra["status"].(string); ok {
		p.Status = PresenceStatus(s)
	}
	return p, nil
}

// StatusBroadcast renders an outbound status payload: the client's fields
// overlaid with the server-known sender id and sanitized user record.
func StatusBroadcast(p *StatusPayload, userID string, user User) map[string]interface{} {
	out := make(map[string]interface{}, len(p.Extra)+2)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["userId"] = userID
	out["user"] = user
	return out
}

// ConnectedPayload greets a connection immediately after accept
type ConnectedPayload struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// ErrorPayload reports a local decode failure back to the offending sender
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
