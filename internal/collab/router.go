package collab

import (
	"time"

	"github.com/google/uuid"

	"github.com/workhive/collab/internal/logger"
	"github.com/workhive/collab/internal/protocol"
)

// Result names the outcome of dispatching one inbound frame. The wire
// behavior for the ignore outcomes is deliberately silent; naming them
// keeps the permissive branches auditable and testable.
type Result int

const (
	// Handled means the frame was processed normally
	Handled Result = iota
	// RejectedBadFrame means the frame or its payload did not decode; the
	// sender was notified with a status error envelope
	RejectedBadFrame
	// IgnoredUnknownType means the envelope type is not part of the protocol
	IgnoredUnknownType
	// IgnoredNotInRoom means a room-scoped message arrived before a join
	IgnoredNotInRoom
	// IgnoredUnknownConnection means the sender is no longer registered
	IgnoredUnknownConnection
	// IgnoredInvalid means a structurally valid payload carried unusable
	// fields, such as a join without a project id
	IgnoredInvalid
)

// Router dispatches inbound envelopes by their type tag and produces the
// outbound traffic each one implies. Handlers are synchronous in-memory
// operations; all socket writes go through the broadcaster after the hub
// mutation completes.
type Router struct {
	hub       *Hub
	b         *Broadcaster
	transform protocol.TransformFunc
	log       *logger.Logger
}

// NewRouter creates a router over hub. transform reconciles concurrent
// edits; nil selects the pass-through transform.
func NewRouter(hub *Hub, b *Broadcaster, transform protocol.TransformFunc, log *logger.Logger) *Router {
	if transform == nil {
		transform = protocol.PassthroughTransform
	}
	if log == nil {
		log = logger.Global()
	}
	return &Router{hub: hub, b: b, transform: transform, log: log}
}

// Greet sends the welcome status envelope to a freshly accepted connection
func (r *Router) Greet(connID string) {
	env, err := protocol.NewEnvelope(protocol.TypeStatus, protocol.ConnectedPayload{
		Type:    protocol.StatusConnected,
		UserID:  connID,
		Message: "Connected to collaboration workspace",
	})
	if err != nil {
		r.log.Error("failed to build welcome envelope: %v", err)
		return
	}
	r.b.SendTo(connID, env)
}

// Dispatch decodes one inbound frame from connID and routes it. Faults are
// contained here: a bad frame earns the sender a status error, everything
// else that cannot be processed is logged and dropped.
func (r *Router) Dispatch(connID string, frame []byte) Result {
	env, err := protocol.Decode(frame)
	if err != nil {
		r.log.Warn("undecodable frame from %s: %v", connID, err)
		r.sendError(connID, "Invalid message format")
		return RejectedBadFrame
	}

	if !r.hub.Known(connID) {
		r.log.Debug("frame from unregistered connection %s dropped", connID)
		return IgnoredUnknownConnection
	}
	r.hub.Touch(connID)

	switch env.Type {
	case protocol.TypePresence:
		return r.handlePresence(connID, env)
	case protocol.TypeChat:
		return r.handleChat(connID, env)
	case protocol.TypeEdit:
		return r.handleEdit(connID, env)
	case protocol.TypeSuggestion:
		return r.handleSuggestion(connID, env)
	case protocol.TypeStatus:
		return r.handleStatus(connID, env)
	default:
		r.log.Warn("unknown message type %q from %s", env.Type, connID)
		return IgnoredUnknownType
	}
}

// Disconnect runs the terminal cleanup for connID and notifies the room it
// left, if any. This is the single exit path shared by client-initiated
// close, read errors and sweep eviction, so every transition into the
// closed state observes identical cleanup.
func (r *Router) Disconnect(connID string) {
	ep, registered := r.hub.Endpoint(connID)
	dep := r.hub.Disconnect(connID)
	if registered {
		_ = ep.link.Close()
	}
	if dep == nil {
		return
	}
	r.notifyLeft(dep)
}

func (r *Router) handlePresence(connID string, env *protocol.Envelope) Result {
	p, err := protocol.DecodePresence(env.Payload)
	if err != nil {
		r.log.Warn("bad presence payload from %s: %v", connID, err)
		r.sendError(connID, "Invalid message format")
		return RejectedBadFrame
	}

	switch p.Type {
	case protocol.PresenceJoinProject:
		return r.joinProject(connID, p.ProjectID)
	case protocol.PresenceLeaveProject:
		return r.leaveProject(connID, p.ProjectID)
	case protocol.PresenceUserUpdated:
		return r.userUpdated(connID, p.Update)
	default:
		r.log.Warn("unknown presence subtype %q from %s", p.Type, connID)
		return IgnoredUnknownType
	}
}

func (r *Router) joinProject(connID, projectID string) Result {
	if projectID == "" {
		r.log.Warn("join_project without projectId from %s", connID)
		return IgnoredInvalid
	}

	res, ok := r.hub.Join(connID, projectID)
	if !ok {
		return IgnoredUnknownConnection
	}

	if res.Left != nil {
		r.notifyLeft(res.Left)
	}

	// Presence snapshot of the other members, then backlog replay, then the
	// join notification to the rest of the room.
	if env, err := protocol.NewEnvelope(protocol.TypePresence, protocol.PresenceListPayload{
		Type:  protocol.PresenceList,
		Users: res.Others,
	}); err == nil {
		r.b.SendTo(connID, env)
	} else {
		r.log.Error("failed to build presence_list: %v", err)
	}

	if len(res.Backlog) > 0 {
		if env, err := protocol.NewEnvelope(protocol.TypeChat, protocol.HistoryPayload{
			Type:     protocol.ChatHistory,
			Messages: res.Backlog,
		}); err == nil {
			r.b.SendTo(connID, env)
		} else {
			r.log.Error("failed to build chat history: %v", err)
		}
	}

	if env, err := protocol.NewEnvelope(protocol.TypePresence, protocol.PresencePayload{
		Type: protocol.PresenceUserJoined,
		User: &res.Self,
	}); err == nil {
		env.UserID = connID
		r.b.fanout(res.Peers, env, connID)
	} else {
		r.log.Error("failed to build user_joined: %v", err)
	}

	r.log.Info("connection %s joined project %s", connID, projectID)
	return Handled
}

func (r *Router) leaveProject(connID, projectID string) Result {
	dep := r.hub.Leave(connID, projectID)
	if dep == nil {
		// Leaving a room you are not in is a no-op
		return Handled
	}
	r.notifyLeft(dep)
	r.log.Info("connection %s left project %s", connID, projectID)
	return Handled
}

func (r *Router) userUpdated(connID string, update *protocol.UserUpdate) Result {
	self, peers, inRoom, ok := r.hub.UpdateUser(connID, update)
	if !ok {
		return IgnoredUnknownConnection
	}
	if !inRoom {
		return Handled
	}

	env, err := protocol.NewEnvelope(protocol.TypePresence, protocol.PresencePayload{
		Type: protocol.PresenceUserUpdated,
		User: &self,
	})
	if err != nil {
		r.log.Error("failed to build user_updated: %v", err)
		return Handled
	}
	env.UserID = connID
	r.b.fanout(peers, env, connID)
	return Handled
}

func (r *Router) handleChat(connID string, env *protocol.Envelope) Result {
	var msg protocol.ChatMessage
	if err := env.DecodePayload(&msg); err != nil {
		r.log.Warn("bad chat payload from %s: %v", connID, err)
		r.sendError(connID, "Invalid message format")
		return RejectedBadFrame
	}

	// Server-authoritative fields; the client may omit them
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.UserID == "" {
		msg.UserID = connID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	stored, roomID, recipients, ok := r.hub.AppendChat(connID, msg)
	if !ok {
		r.log.Debug("chat from %s outside a room dropped", connID)
		return IgnoredNotInRoom
	}

	out, err := protocol.NewEnvelope(protocol.TypeChat, stored)
	if err != nil {
		r.log.Error("failed to build chat envelope: %v", err)
		return Handled
	}
	out.UserID = connID
	out.ProjectID = roomID

	// The sender receives its own message back, confirming server order
	r.b.fanout(recipients, out, "")
	return Handled
}

func (r *Router) handleEdit(connID string, env *protocol.Envelope) Result {
	var op protocol.EditOperation
	if err := env.DecodePayload(&op); err != nil {
		r.log.Warn("bad edit payload from %s: %v", connID, err)
		r.sendError(connID, "Invalid message format")
		return RejectedBadFrame
	}

	roomID, recipients, ok := r.hub.RoomEndpoints(connID, true)
	if !ok {
		r.log.Debug("edit from %s outside a room dropped", connID)
		return IgnoredNotInRoom
	}

	if op.UserID == "" {
		op.UserID = connID
	}
	// No per-file operation log is kept; the transform sees only the new op
	op = r.transform(nil, op)

	out, err := protocol.NewEnvelope(protocol.TypeEdit, op)
	if err != nil {
		r.log.Error("failed to build edit envelope: %v", err)
		return Handled
	}
	out.UserID = connID
	out.ProjectID = roomID

	r.b.fanout(recipients, out, connID)
	return Handled
}

func (r *Router) handleSuggestion(connID string, env *protocol.Envelope) Result {
	roomID, recipients, ok := r.hub.RoomEndpoints(connID, false)
	if !ok {
		r.log.Debug("suggestion from %s outside a room dropped", connID)
		return IgnoredNotInRoom
	}

	// Suggestions pass through verbatim
	out := &protocol.Envelope{
		Type:      protocol.TypeSuggestion,
		Payload:   env.Payload,
		UserID:    connID,
		ProjectID: roomID,
		Timestamp: time.Now().UTC(),
	}
	r.b.fanout(recipients, out, "")
	return Handled
}

func (r *Router) handleStatus(connID string, env *protocol.Envelope) Result {
	p, err := protocol.DecodeStatus(env.Payload)
	if err != nil {
		r.log.Warn("bad status payload from %s: %v", connID, err)
		r.sendError(connID, "Invalid message format")
		return RejectedBadFrame
	}

	var update *protocol.UserUpdate
	if p.Status != "" {
		status := p.Status
		update = &protocol.UserUpdate{Status: &status}
	}

	self, peers, inRoom, ok := r.hub.UpdateUser(connID, update)
	if !ok {
		return IgnoredUnknownConnection
	}
	if !inRoom {
		return Handled
	}

	out, err := protocol.NewEnvelope(protocol.TypeStatus, protocol.StatusBroadcast(p, connID, self))
	if err != nil {
		r.log.Error("failed to build status envelope: %v", err)
		return Handled
	}
	out.UserID = connID
	r.b.fanout(peers, out, connID)
	return Handled
}

// notifyLeft broadcasts user_left to the members remaining after a
// departure. An emptied room has nobody left to tell.
func (r *Router) notifyLeft(dep *Departure) {
	if len(dep.Remaining) == 0 {
		return
	}
	env, err := protocol.NewEnvelope(protocol.TypePresence, protocol.PresencePayload{
		Type:   protocol.PresenceUserLeft,
		UserID: dep.ConnID,
	})
	if err != nil {
		r.log.Error("failed to build user_left: %v", err)
		return
	}
	r.b.fanout(dep.Remaining, env, "")
}

func (r *Router) sendError(connID, message string) {
	env, err := protocol.NewEnvelope(protocol.TypeStatus, protocol.ErrorPayload{
		Type:    protocol.StatusError,
		Message: message,
	})
	if err != nil {
		r.log.Error("failed to build error envelope: %v", err)
		return
	}
	r.b.SendTo(connID, env)
}
