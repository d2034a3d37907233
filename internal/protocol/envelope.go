// Package protocol defines the wire format exchanged with collaboration
// clients: a typed envelope carrying a type-specific JSON payload. Envelopes
// are transient; the only payload ever retained server-side is the chat
// message appended to a room's history.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types
const (
	TypeChat       = "chat"
	TypePresence   = "presence"
	TypeEdit       = "edit"
	TypeSuggestion = "suggestion"
	TypeStatus     = "status"
)

// Presence payload subtypes
const (
	PresenceJoinProject  = "join_project"
	PresenceLeaveProject = "leave_project"
	PresenceUserUpdated  = "user_updated"
	PresenceList         = "presence_list"
	PresenceUserJoined   = "user_joined"
	PresenceUserLeft     = "user_left"
)

// Status payload subtypes
const (
	StatusConnected = "connected"
	StatusError     = "error"
)

// ChatHistory is the chat payload subtype used to replay backlog on join
const ChatHistory = "history"

// Envelope is the unit of exchange on the wire. Payload stays opaque to the
// transport layer; handlers decode it by Type. UserID and Timestamp are
// server-assigned on every outbound envelope.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	ProjectID string          `json:"projectId,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// Decode parses one inbound frame into an envelope
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid message format: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("invalid message format: missing type")
	}
	return &env, nil
}

// Encode serializes an envelope for the wire
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals the envelope payload into v
func (e *Envelope) DecodePayload(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("empty %s payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return nil
}

// NewEnvelope builds an outbound envelope with a server-assigned timestamp.
// The payload must be JSON-serializable; a marshal failure here is a
// programming error and is returned for the caller to log.
func NewEnvelope(typ string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &Envelope{
		Type:      typ,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}
