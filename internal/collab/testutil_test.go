package collab

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/workhive/collab/internal/logger"
	"github.com/workhive/collab/internal/protocol"
)

// fakeLink is an in-memory transport endpoint recording everything the
// server delivers to it.
type fakeLink struct {
	mu       sync.Mutex
	sent     []*protocol.Envelope
	alive    bool
	failSend bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{alive: true}
}

func (f *fakeLink) Send(env *protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("simulated write failure")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeLink) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	return nil
}

func (f *fakeLink) envelopes() []*protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*protocol.Envelope, len(f.sent))
	copy(out, f.sent)
	return out
}

// byType filters recorded envelopes by envelope type
func (f *fakeLink) byType(typ string) []*protocol.Envelope {
	var out []*protocol.Envelope
	for _, env := range f.envelopes() {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

// reset forgets everything recorded so far
func (f *fakeLink) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

// harness wires a hub, broadcaster and router over fake links
type harness struct {
	hub    *Hub
	router *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log, err := logger.New(logger.LevelNone, "", "")
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	hub := NewHub(1000, 50, log)
	b := NewBroadcaster(hub, log)
	return &harness{hub: hub, router: NewRouter(hub, b, nil, log)}
}

// connect registers a fresh fake connection
func (h *harness) connect() (string, *fakeLink) {
	link := newFakeLink()
	return h.hub.Connect(link), link
}

// frame builds an inbound wire frame
func frame(t *testing.T, typ string, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	data, err := json.Marshal(map[string]interface{}{
		"type":    typ,
		"payload": json.RawMessage(raw),
	})
	if err != nil {
		t.Fatalf("failed to marshal frame: %v", err)
	}
	return data
}

func joinFrame(t *testing.T, projectID string) []byte {
	return frame(t, protocol.TypePresence, map[string]string{
		"type":      protocol.PresenceJoinProject,
		"projectId": projectID,
	})
}

func chatFrame(t *testing.T, content string) []byte {
	return frame(t, protocol.TypeChat, map[string]string{
		"content": content,
		"role":    "user",
	})
}

// dispatch fails the test unless the frame is handled
func (h *harness) dispatch(t *testing.T, connID string, data []byte) {
	t.Helper()
	if res := h.router.Dispatch(connID, data); res != Handled {
		t.Fatalf("expected frame to be handled, got %v", res)
	}
}

// presencePayload decodes a presence envelope payload
func presencePayload(t *testing.T, env *protocol.Envelope) map[string]interface{} {
	t.Helper()
	var p map[string]interface{}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("failed to decode presence payload: %v", err)
	}
	return p
}

// presenceOfSubtype returns the recorded presence envelopes with the given
// payload subtype.
func presenceOfSubtype(t *testing.T, link *fakeLink, subtype string) []*protocol.Envelope {
	t.Helper()
	var out []*protocol.Envelope
	for _, env := range link.byType(protocol.TypePresence) {
		if presencePayload(t, env)["type"] == subtype {
			out = append(out, env)
		}
	}
	return out
}
