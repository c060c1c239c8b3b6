package peer

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/GZancewicz/web-conference/internal/protocol"
)

// Role of the local side in a pairwise negotiation. The earlier room
// member is always the initiator, so roles are fixed by arrival order and
// simultaneous offers cannot occur.
type Role int8

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// State of one negotiation session.
type State string

const (
	StateNew        State = "new"
	StateOfferSent  State = "offer-sent"
	StateAnswerSent State = "answer-sent"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
)

// Session is one negotiation with one remote participant. All transitions
// are serialized by mu: signaling events arrive on the engine's dispatch
// goroutine while pion fires its callbacks on its own, and the two must
// never interleave for the same remote.
type Session struct {
	engine     *Engine
	remoteID   string
	remoteName string
	role       Role

	mu          sync.Mutex
	state       State
	pc          *webrtc.PeerConnection
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender

	// Candidates that arrived before the remote description. Applying a
	// candidate before the remote description is set is invalid, so they
	// wait here and are flushed in arrival order.
	pending   []webrtc.ICECandidateInit
	remoteSet bool

	// applyCandidate defaults to pc.AddICECandidate.
	applyCandidate func(webrtc.ICECandidateInit) error
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns the local side's role.
func (s *Session) Role() Role { return s.role }

// RemoteID returns the remote participant id.
func (s *Session) RemoteID() string { return s.remoteID }

// sendOffer generates the offer and transitions new -> offer-sent. Caller
// is the engine, on the dispatch goroutine.
func (s *Session) sendOffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNew {
		return newError("send offer", s.remoteID, ErrDuplicateSession)
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return newError("create offer", s.remoteID, err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return newError("set local description", s.remoteID, err)
	}

	s.state = StateOfferSent
	s.engine.sig.Send(addressed(protocol.TypeOffer, s.remoteID, protocol.SDPPayload{
		Description: *s.pc.LocalDescription(),
	}))
	return nil
}

// handleOffer applies the remote offer, answers it, and transitions
// new -> answer-sent.
func (s *Session) handleOffer(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNew {
		return newError("handle offer", s.remoteID, ErrUnexpectedOffer)
	}

	if err := s.setRemoteLocked(desc); err != nil {
		return newError("set remote offer", s.remoteID, err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return newError("create answer", s.remoteID, err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return newError("set local description", s.remoteID, err)
	}

	s.state = StateAnswerSent
	s.engine.sig.Send(addressed(protocol.TypeAnswer, s.remoteID, protocol.SDPPayload{
		Description: *s.pc.LocalDescription(),
	}))
	return nil
}

// handleAnswer applies the remote answer and transitions
// offer-sent -> connected.
func (s *Session) handleAnswer(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOfferSent {
		return newError("handle answer", s.remoteID, ErrUnexpectedAnswer)
	}
	if err := s.setRemoteLocked(desc); err != nil {
		return newError("set remote answer", s.remoteID, err)
	}
	s.state = StateConnected
	return nil
}

// handleCandidate applies a trickled candidate, queueing it if the remote
// description has not been applied yet.
func (s *Session) handleCandidate(candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	if !s.remoteSet {
		s.pending = append(s.pending, candidate)
		return nil
	}
	if err := s.applyCandidate(candidate); err != nil {
		return newError("add candidate", s.remoteID, err)
	}
	return nil
}

// setRemoteLocked applies the remote description and flushes the pending
// candidate queue in arrival order. Caller holds mu.
func (s *Session) setRemoteLocked(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.remoteSet = true
	for _, c := range s.pending {
		if err := s.applyCandidate(c); err != nil {
			slog.Warn("failed to apply queued candidate", "peer", s.remoteID, "err", err)
		}
	}
	s.pending = nil
	return nil
}

// replaceAudio swaps the outgoing audio track in place. A nil track stops
// sending (mute) without renegotiation.
func (s *Session) replaceAudio(track webrtc.TrackLocal) {
	s.mu.Lock()
	sender := s.audioSender
	s.mu.Unlock()
	if sender == nil {
		return
	}
	if err := sender.ReplaceTrack(track); err != nil {
		slog.Warn("audio track swap failed", "peer", s.remoteID, "err", err)
	}
}

// replaceVideo swaps the outgoing video track in place; used for camera
// toggling and the screen-share substitution.
func (s *Session) replaceVideo(track webrtc.TrackLocal) {
	s.mu.Lock()
	sender := s.videoSender
	s.mu.Unlock()
	if sender == nil {
		return
	}
	if err := sender.ReplaceTrack(track); err != nil {
		slog.Warn("video track swap failed", "peer", s.remoteID, "err", err)
	}
}

// close releases the transport and marks the session terminal. Idempotent;
// every exit path funnels through here.
func (s *Session) close(reason error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.pending = nil
	pc := s.pc
	s.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
	slog.Info("session closed", "peer", s.remoteID, "reason", reason)
	if cb := s.engine.onClosed; cb != nil {
		cb(s.remoteID, reason)
	}
}

// addressed builds a directed message for the remote participant.
func addressed(msgType, to string, payload any) *protocol.Message {
	msg := protocol.MustNew(msgType, payload)
	msg.To = to
	return msg
}
