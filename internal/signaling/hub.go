// Package signaling implements the server side of the conference protocol:
// room membership through the registry and an envelope relay that never
// looks inside offer/answer/ICE payloads.
package signaling

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GZancewicz/web-conference/internal/metrics"
	"github.com/GZancewicz/web-conference/internal/protocol"
	"github.com/GZancewicz/web-conference/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	// The server fronts its own static assets; cross-origin browsers are
	// expected during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub routes signaling messages between connections. Membership decisions
// are delegated to the registry; the hub only owns the participant id to
// connection mapping.
type Hub struct {
	registry *registry.Registry

	mu    sync.RWMutex
	conns map[string]*Client
}

func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		registry: reg,
		conns:    make(map[string]*Client),
	}
}

// ServeWs upgrades the request and starts the connection's pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan *protocol.Message, sendBuffer),
	}
	metrics.ConnectionsActive.Inc()
	slog.Info("connection opened", "client", client.id, "remote", conn.RemoteAddr())

	go client.writePump()
	go client.readPump()
}

// Handle processes one inbound message on the connection's goroutine. A
// panic in a handler is contained to that message: the connection and the
// rest of the server keep running.
func (h *Hub) Handle(c *Client, msg *protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic handling message", "client", c.id, "type", msg.Type, "panic", r)
		}
	}()

	switch msg.Type {
	case protocol.TypeJoin:
		h.handleJoin(c, msg)

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		h.relayDirected(c, msg)

	case protocol.TypeChatMessage:
		h.relayChat(c, msg)

	case protocol.TypeToggleAudio, protocol.TypeToggleVideo:
		h.relayToggle(c, msg)

	default:
		metrics.MalformedDropped.Inc()
		slog.Warn("unknown message type", "client", c.id, "type", msg.Type)
	}
}

// handleJoin admits the connection into a room. The joiner's snapshot and
// the participant-joined notifications are enqueued inside the registry's
// per-room critical section, so the snapshot always precedes notifications
// about later arrivals.
func (h *Hub) handleJoin(c *Client, msg *protocol.Message) {
	var join protocol.JoinPayload
	if err := msg.DecodePayload(&join); err != nil {
		h.reject(c, "invalid join payload")
		return
	}
	if join.RoomID == "" || join.DisplayName == "" {
		h.reject(c, "room_id and display_name are required")
		return
	}
	if c.roomID != "" {
		h.reject(c, "already in a room")
		return
	}

	p := &registry.Participant{ID: c.id, DisplayName: join.DisplayName}

	// Register the connection before the room admits the participant, so a
	// member that learns of the join can address us immediately.
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	_, err := h.registry.Join(join.RoomID, p, func(others []*registry.Participant) {
		members := make([]protocol.Member, len(others))
		for i, o := range others {
			members[i] = protocol.Member{ID: o.ID, DisplayName: o.DisplayName}
		}
		c.trySend(protocol.MustNew(protocol.TypeExistingMembers, protocol.ExistingMembersPayload{
			SelfID:  c.id,
			Members: members,
		}))

		joined := protocol.MustNew(protocol.TypeParticipantJoined, protocol.Member{
			ID:          c.id,
			DisplayName: join.DisplayName,
		})
		for _, o := range others {
			h.sendTo(o.ID, joined)
		}
	})
	if err != nil {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()
		h.reject(c, err.Error())
		return
	}

	c.roomID = join.RoomID
	c.displayName = join.DisplayName
	metrics.JoinsTotal.Inc()
	metrics.RoomsActive.Set(float64(h.registry.RoomCount()))
	slog.Info("participant joined", "client", c.id, "room", join.RoomID, "name", join.DisplayName)
}

// relayDirected forwards an offer, answer or ICE candidate verbatim to the
// target participant. Absent targets are expected under churn: the message
// is dropped silently and the sender recovers through renegotiation.
func (h *Hub) relayDirected(c *Client, msg *protocol.Message) {
	if c.roomID == "" || msg.To == "" || len(msg.Payload) == 0 {
		metrics.MalformedDropped.Inc()
		slog.Warn("dropping malformed directed message", "client", c.id, "type", msg.Type)
		return
	}

	out := &protocol.Message{
		Type:     msg.Type,
		From:     c.id,
		FromName: c.displayName,
		To:       msg.To,
		Payload:  msg.Payload,
	}
	if h.sendTo(msg.To, out) {
		metrics.MessagesRelayed.WithLabelValues(msg.Type).Inc()
	} else {
		metrics.DirectedDropped.Inc()
		slog.Debug("directed message dropped, target not connected", "type", msg.Type, "to", msg.To)
	}
}

// relayChat broadcasts a chat message to the whole room, sender included,
// stamped with the sender identity and a server-assigned timestamp so every
// member renders the same canonical record.
func (h *Hub) relayChat(c *Client, msg *protocol.Message) {
	if c.roomID == "" {
		metrics.MalformedDropped.Inc()
		return
	}
	var chat protocol.ChatPayload
	if err := msg.DecodePayload(&chat); err != nil || chat.Text == "" {
		metrics.MalformedDropped.Inc()
		slog.Warn("dropping malformed chat message", "client", c.id)
		return
	}

	now := time.Now()
	out := protocol.MustNew(protocol.TypeChatMessage, chat)
	out.From = c.id
	out.FromName = c.displayName
	out.RoomID = c.roomID
	out.Timestamp = now.UnixMilli()

	h.broadcast(c.roomID, out)
	h.registry.AppendContext(c.roomID, registry.ChatRecord{
		From:        c.id,
		DisplayName: c.displayName,
		Text:        chat.Text,
		Timestamp:   now,
	})
	metrics.MessagesRelayed.WithLabelValues(protocol.TypeChatMessage).Inc()
}

// relayToggle broadcasts an audio/video state change to the room.
func (h *Hub) relayToggle(c *Client, msg *protocol.Message) {
	if c.roomID == "" {
		metrics.MalformedDropped.Inc()
		return
	}
	var toggle protocol.TogglePayload
	if err := msg.DecodePayload(&toggle); err != nil {
		metrics.MalformedDropped.Inc()
		slog.Warn("dropping malformed toggle message", "client", c.id, "type", msg.Type)
		return
	}

	out := protocol.MustNew(msg.Type, toggle)
	out.From = c.id
	out.FromName = c.displayName
	out.RoomID = c.roomID

	h.broadcast(c.roomID, out)
	metrics.MessagesRelayed.WithLabelValues(msg.Type).Inc()
}

// Disconnect tears the connection down. It runs exactly once per client no
// matter how the connection ended, and is a no-op for clients that never
// joined a room.
func (h *Hub) Disconnect(c *Client) {
	c.disconnectOnce.Do(func() {
		metrics.ConnectionsActive.Dec()

		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()

		_, remaining, ok := h.registry.Leave(c.id, func(roomID string, remaining []*registry.Participant) {
			left := protocol.MustNew(protocol.TypeParticipantLeft, protocol.Member{
				ID:          c.id,
				DisplayName: c.displayName,
			})
			for _, p := range remaining {
				h.sendTo(p.ID, left)
			}
		})
		if ok {
			metrics.RoomsActive.Set(float64(h.registry.RoomCount()))
			slog.Info("participant left", "client", c.id, "remaining", remaining)
		} else {
			slog.Debug("connection closed before joining", "client", c.id)
		}

		c.closeSend()
	})
}

// broadcast fans a message out to every current member of the room,
// including the sender.
func (h *Hub) broadcast(roomID string, msg *protocol.Message) {
	for _, p := range h.registry.MembersOf(roomID) {
		h.sendTo(p.ID, msg)
	}
}

// sendTo enqueues msg for the given participant id. Returns false when the
// participant has no live connection.
func (h *Hub) sendTo(id string, msg *protocol.Message) bool {
	h.mu.RLock()
	target, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	target.trySend(msg)
	return true
}

// reject reports a protocol error back to the client without registering
// any state.
func (h *Hub) reject(c *Client, reason string) {
	metrics.MalformedDropped.Inc()
	slog.Warn("rejecting message", "client", c.id, "reason", reason)
	c.trySend(protocol.MustNew(protocol.TypeError, protocol.ErrorPayload{Error: reason}))
}
