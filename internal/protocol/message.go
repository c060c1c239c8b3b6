// Package protocol defines the wire format shared by the signaling server
// and the conference client. Every message is a JSON envelope with a type
// tag and an opaque payload; the server never interprets offer/answer/ICE
// payloads, it only routes them.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Message is the envelope for all client/server signaling traffic.
// From, FromName and Timestamp are stamped by the server on relayed
// messages; clients never set them.
type Message struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	From      string          `json:"from,omitempty"`
	FromName  string          `json:"from_name,omitempty"`
	To        string          `json:"to,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	TypeJoin              = "join"
	TypeExistingMembers   = "existing-members"
	TypeParticipantJoined = "participant-joined"
	TypeParticipantLeft   = "participant-left"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeICECandidate      = "ice-candidate"
	TypeChatMessage       = "chat-message"
	TypeToggleAudio       = "toggle-audio"
	TypeToggleVideo       = "toggle-video"
	TypeError             = "error"
)

var ErrEmptyPayload = errors.New("empty payload")

// Member identifies a participant as seen by other room members.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// JoinPayload is sent by a client to enter a room.
type JoinPayload struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
}

// ExistingMembersPayload is the snapshot a client receives on join. SelfID
// tells the joiner which connection identifier the server assigned to it,
// so it can recognise its own echoed broadcasts.
type ExistingMembersPayload struct {
	SelfID  string   `json:"self_id"`
	Members []Member `json:"members"`
}

// SDPPayload carries an offer or answer session description.
type SDPPayload struct {
	Description webrtc.SessionDescription `json:"description"`
}

// CandidatePayload carries one trickled ICE candidate.
type CandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// ChatPayload carries chat text. The sender identity and timestamp live on
// the envelope, stamped by the server when it echoes the broadcast.
type ChatPayload struct {
	Text string `json:"text"`
}

// TogglePayload reports the new enabled state for toggle-audio/toggle-video.
type TogglePayload struct {
	Enabled bool `json:"enabled"`
}

// ErrorPayload is a server-reported error.
type ErrorPayload struct {
	Error string `json:"error"`
}

// New builds a message of the given type with a marshalled payload.
func New(msgType string, payload any) (*Message, error) {
	m := &Message{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		m.Payload = raw
	}
	return m, nil
}

// MustNew is New for payloads that cannot fail to marshal (our own structs).
func MustNew(msgType string, payload any) *Message {
	m, err := New(msgType, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// DecodePayload unmarshals the envelope payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
