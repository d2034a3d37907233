package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeEnvelope(t *testing.T) {
	raw := []byte(`{"type":"chat","payload":{"id":"m1","content":"hello","role":"user"},"projectId":"proj1"}`)

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if env.Type != TypeChat {
		t.Errorf("expected type chat, got %s", env.Type)
	}
	if env.ProjectID != "proj1" {
		t.Errorf("expected projectId proj1, got %s", env.ProjectID)
	}

	var msg ChatMessage
	if err := env.DecodePayload(&msg); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if msg.Content != "hello" || msg.Role != "user" {
		t.Errorf("unexpected chat payload: %+v", msg)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"not json", "{}", `{"payload":{}}`, ""} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Errorf("expected decode error for %q", raw)
		}
	}
}

func TestNewEnvelopeStampsTimestamp(t *testing.T) {
	before := time.Now().UTC()
	env, err := NewEnvelope(TypeStatus, ErrorPayload{Type: StatusError, Message: "bad frame"})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}

	if env.Timestamp.Before(before) {
		t.Errorf("expected server timestamp >= %v, got %v", before, env.Timestamp)
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	round, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode of encoded envelope failed: %v", err)
	}
	var p ErrorPayload
	if err := round.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.Type != StatusError || p.Message != "bad frame" {
		t.Errorf("unexpected error payload: %+v", p)
	}
}

func TestDecodePresencePartialUpdate(t *testing.T) {
	raw := json.RawMessage(`{"type":"user_updated","user":{"name":"Ada","cursor":{"file":"main.go","line":3,"column":7}}}`)

	p, err := DecodePresence(raw)
	if err != nil {
		t.Fatalf("DecodePresence failed: %v", err)
	}

	if p.Type != PresenceUserUpdated {
		t.Errorf("expected user_updated, got %s", p.Type)
	}
	if p.Update == nil || p.Update.Name == nil || *p.Update.Name != "Ada" {
		t.Errorf("expected name update Ada, got %+v", p.Update)
	}
	if p.Update.Email != nil {
		t.Error("email was not supplied and must stay nil")
	}
	if p.Update.Cursor == nil || p.Update.Cursor.Line != 3 {
		t.Errorf("expected cursor line 3, got %+v", p.Update.Cursor)
	}
}

func TestDecodeStatusKeepsExtraFields(t *testing.T) {
	raw := json.RawMessage(`{"status":"away","reason":"lunch"}`)

	p, err := DecodeStatus(raw)
	if err != nil {
		t.Fatalf("DecodeStatus failed: %v", err)
	}
	if p.Status != PresenceAway {
		t.Errorf("expected away, got %s", p.Status)
	}

	out := StatusBroadcast(p, "u1", User{ID: "u1", Name: "Ada", Status: PresenceAway})
	if out["reason"] != "lunch" {
		t.Errorf("expected extra field to survive, got %+v", out)
	}
	if out["userId"] != "u1" {
		t.Errorf("expected server-set userId, got %+v", out["userId"])
	}
}

func TestPassthroughTransform(t *testing.T) {
	op := EditOperation{
		Type:      EditInsert,
		File:      "main.go",
		Range:     Range{Start: Position{Line: 1}, End: Position{Line: 1, Column: 4}},
		Content:   "abcd",
		UserID:    "u1",
		Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	got := PassthroughTransform(nil, op)

	if got.Type != op.Type || got.File != op.File || got.Content != op.Content || got.Range != op.Range {
		t.Errorf("transform must not alter the operation, got %+v", got)
	}
	if !got.Timestamp.After(op.Timestamp) {
		t.Errorf("transform must stamp a fresh server timestamp, got %v", got.Timestamp)
	}
}

func TestPresenceStatusValid(t *testing.T) {
	for _, s := range []PresenceStatus{PresenceOnline, PresenceAway, PresenceBusy} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if PresenceStatus("offline").Valid() {
		t.Error("offline is not a known status")
	}
}
