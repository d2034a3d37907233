package collab

import (
	"github.com/workhive/collab/internal/logger"
	"github.com/workhive/collab/internal/protocol"
)

// Broadcaster delivers envelopes to one connection or fans them out to a
// room. Delivery is at-most-once best effort: a failed or dead recipient is
// logged and skipped, never retried, and never aborts the rest of a fan-out.
// Evicting dead connections is the sweep's job, not the broadcaster's.
type Broadcaster struct {
	hub *Hub
	log *logger.Logger
}

// NewBroadcaster creates a broadcaster over hub
func NewBroadcaster(hub *Hub, log *logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Global()
	}
	return &Broadcaster{hub: hub, log: log}
}

// SendTo delivers env to a single connection, if it is still registered
func (b *Broadcaster) SendTo(connID string, env *protocol.Envelope) {
	ep, ok := b.hub.Endpoint(connID)
	if !ok {
		b.log.Debug("send to unknown connection %s dropped", connID)
		return
	}
	b.deliver(ep, env)
}

// BroadcastToRoom delivers env to every member of roomID except exclude
// (no exclusion when exclude is empty). Recipient order is unspecified.
func (b *Broadcaster) BroadcastToRoom(roomID string, env *protocol.Envelope, exclude string) {
	for _, ep := range b.hub.Members(roomID) {
		if ep == exclude {
			continue
		}
		b.SendTo(ep, env)
	}
}

// fanout delivers env to a previously snapshotted endpoint list, except
// exclude. Used by the router so delivery matches the membership observed
// by the mutation that produced the snapshot.
func (b *Broadcaster) fanout(eps []endpoint, env *protocol.Envelope, exclude string) {
	for _, ep := range eps {
		if ep.id == exclude {
			continue
		}
		b.deliver(ep, env)
	}
}

func (b *Broadcaster) deliver(ep endpoint, env *protocol.Envelope) {
	if !ep.link.Alive() {
		b.log.Debug("dropping %s envelope for closed connection %s", env.Type, ep.id)
		return
	}
	if err := ep.link.Send(env); err != nil {
		b.log.Warn("failed to send %s envelope to %s: %v", env.Type, ep.id, err)
	}
}
