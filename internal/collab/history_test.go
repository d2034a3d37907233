package collab

import (
	"fmt"
	"testing"

	"github.com/workhive/collab/internal/protocol"
)

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := newHistoryStore(3)
	for i := 0; i < 5; i++ {
		h.append("room", protocol.ChatMessage{ID: fmt.Sprintf("m%d", i)})
	}

	got := h.recent("room", 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 retained messages, got %d", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	h := newHistoryStore(10)
	h.append("room", protocol.ChatMessage{ID: "m0", Content: "original"})

	got := h.recent("room", 10)
	got[0].Content = "mutated"

	if h.recent("room", 10)[0].Content != "original" {
		t.Error("recent must return a copy, not a live view")
	}
}

func TestRecentOnUnknownRoom(t *testing.T) {
	h := newHistoryStore(10)
	if got := h.recent("nowhere", 50); len(got) != 0 {
		t.Errorf("expected empty slice for unknown room, got %d", len(got))
	}
}

func TestPurge(t *testing.T) {
	h := newHistoryStore(10)
	h.append("room", protocol.ChatMessage{ID: "m0"})
	h.purge("room")

	if h.total() != 0 {
		t.Errorf("expected empty store after purge, got %d", h.total())
	}
}
