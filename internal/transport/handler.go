package transport

import (
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/GZancewicz/web-conference/internal/protocol"
)

// DirectedSDP is a decoded offer or answer addressed to us.
type DirectedSDP struct {
	From        string
	FromName    string
	Description webrtc.SessionDescription
}

// DirectedCandidate is a decoded ICE candidate addressed to us.
type DirectedCandidate struct {
	From      string
	Candidate webrtc.ICECandidateInit
}

// ChatEvent is an echoed room chat message with the server's canonical
// timestamp (unix milliseconds).
type ChatEvent struct {
	From      string
	FromName  string
	Text      string
	Timestamp int64
}

// ToggleEvent reports a participant's audio or video state change.
type ToggleEvent struct {
	From    string
	Enabled bool
}

// Snapshot is the existing-members response to our join.
type Snapshot struct {
	SelfID  string
	Members []protocol.Member
}

// Handler decodes inbound transport messages into typed event channels.
// Undecodable messages are logged and dropped; they never stop the stream.
type Handler struct {
	client *Client

	Joined       chan Snapshot
	MemberJoined chan protocol.Member
	MemberLeft   chan protocol.Member
	Offer        chan DirectedSDP
	Answer       chan DirectedSDP
	Candidate    chan DirectedCandidate
	Chat         chan ChatEvent
	AudioToggled chan ToggleEvent
	VideoToggled chan ToggleEvent
	Error        chan string
	Done         chan struct{}
}

func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		Joined:       make(chan Snapshot, 1),
		MemberJoined: make(chan protocol.Member, 8),
		MemberLeft:   make(chan protocol.Member, 8),
		Offer:        make(chan DirectedSDP, 8),
		Answer:       make(chan DirectedSDP, 8),
		Candidate:    make(chan DirectedCandidate, 64),
		Chat:         make(chan ChatEvent, 32),
		AudioToggled: make(chan ToggleEvent, 8),
		VideoToggled: make(chan ToggleEvent, 8),
		Error:        make(chan string, 1),
		Done:         make(chan struct{}),
	}
}

// Start consumes the transport until it closes, routing each message to
// its typed channel. Run it on its own goroutine.
func (h *Handler) Start() {
	defer close(h.Done)

	for msg := range h.client.Incoming() {
		switch msg.Type {
		case protocol.TypeExistingMembers:
			var p protocol.ExistingMembersPayload
			if h.decode(msg, &p) {
				h.Joined <- Snapshot{SelfID: p.SelfID, Members: p.Members}
			}

		case protocol.TypeParticipantJoined:
			var m protocol.Member
			if h.decode(msg, &m) {
				h.MemberJoined <- m
			}

		case protocol.TypeParticipantLeft:
			var m protocol.Member
			if h.decode(msg, &m) {
				h.MemberLeft <- m
			}

		case protocol.TypeOffer:
			var p protocol.SDPPayload
			if h.decode(msg, &p) {
				h.Offer <- DirectedSDP{From: msg.From, FromName: msg.FromName, Description: p.Description}
			}

		case protocol.TypeAnswer:
			var p protocol.SDPPayload
			if h.decode(msg, &p) {
				h.Answer <- DirectedSDP{From: msg.From, FromName: msg.FromName, Description: p.Description}
			}

		case protocol.TypeICECandidate:
			var p protocol.CandidatePayload
			if h.decode(msg, &p) {
				h.Candidate <- DirectedCandidate{From: msg.From, Candidate: p.Candidate}
			}

		case protocol.TypeChatMessage:
			var p protocol.ChatPayload
			if h.decode(msg, &p) {
				h.Chat <- ChatEvent{From: msg.From, FromName: msg.FromName, Text: p.Text, Timestamp: msg.Timestamp}
			}

		case protocol.TypeToggleAudio:
			var p protocol.TogglePayload
			if h.decode(msg, &p) {
				h.AudioToggled <- ToggleEvent{From: msg.From, Enabled: p.Enabled}
			}

		case protocol.TypeToggleVideo:
			var p protocol.TogglePayload
			if h.decode(msg, &p) {
				h.VideoToggled <- ToggleEvent{From: msg.From, Enabled: p.Enabled}
			}

		case protocol.TypeError:
			var p protocol.ErrorPayload
			if h.decode(msg, &p) {
				select {
				case h.Error <- p.Error:
				default:
				}
			}

		default:
			slog.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

func (h *Handler) decode(msg *protocol.Message, v any) bool {
	if err := msg.DecodePayload(v); err != nil {
		slog.Warn("dropping undecodable message", "type", msg.Type, "err", err)
		return false
	}
	return true
}
