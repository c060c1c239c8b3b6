// Package peer drives one negotiation state machine per remote
// participant. The engine consumes signaling events, owns every session,
// and is the only component that touches the media transport.
package peer

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/GZancewicz/web-conference/internal/media"
	"github.com/GZancewicz/web-conference/internal/protocol"
)

// Signaler sends directed messages through the session transport.
type Signaler interface {
	Send(msg *protocol.Message)
}

// Config wires the engine to its collaborators.
type Config struct {
	// API, if nil, falls back to the default pion API (no local media).
	API        *webrtc.API
	ICEServers []webrtc.ICEServer
	Signaler   Signaler

	// Local capture; nil means receive-only.
	Local *media.Source

	// OnTrack fires when a remote media track arrives.
	OnTrack func(remoteID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

	// OnClosed fires once per session teardown, on every exit path.
	OnClosed func(remoteID string, reason error)
}

// Engine owns at most one live session per remote participant.
type Engine struct {
	api      *webrtc.API
	rtcCfg   webrtc.Configuration
	sig      Signaler
	local    *media.Source
	onTrack  func(string, *webrtc.TrackRemote, *webrtc.RTPReceiver)
	onClosed func(string, error)

	mu       sync.Mutex
	sessions map[string]*Session
	early    map[string][]webrtc.ICECandidateInit
	closed   bool
}

// earlyCandidateLimit bounds the candidates held for a remote id that has
// no session yet. Stragglers from a departed peer stop accumulating here.
const earlyCandidateLimit = 16

func NewEngine(cfg Config) *Engine {
	api := cfg.API
	if api == nil {
		api = webrtc.NewAPI()
	}
	return &Engine{
		api:      api,
		rtcCfg:   webrtc.Configuration{ICEServers: cfg.ICEServers},
		sig:      cfg.Signaler,
		local:    cfg.Local,
		onTrack:  cfg.OnTrack,
		onClosed: cfg.OnClosed,
		sessions: make(map[string]*Session),
		early:    make(map[string][]webrtc.ICECandidateInit),
	}
}

// HandleSnapshot starts one initiator negotiation per existing member.
// Being present before us makes them the answerers.
func (e *Engine) HandleSnapshot(members []protocol.Member) {
	for _, m := range members {
		if err := e.StartInitiator(m.ID, m.DisplayName); err != nil {
			slog.Error("failed to start negotiation", "peer", m.ID, "err", err)
		}
	}
}

// StartInitiator creates the session for a remote that was already in the
// room and sends it our offer.
func (e *Engine) StartInitiator(remoteID, remoteName string) error {
	s, err := e.newSession(remoteID, remoteName, Initiator)
	if err != nil {
		return err
	}
	if err := s.sendOffer(); err != nil {
		e.closeSession(remoteID, err)
		return err
	}
	return nil
}

// HandleOffer answers an inbound offer, creating the responder session on
// first contact. An offer for a session past negotiation is stale and
// dropped.
func (e *Engine) HandleOffer(from, fromName string, desc webrtc.SessionDescription) error {
	e.mu.Lock()
	s, exists := e.sessions[from]
	e.mu.Unlock()

	if exists && s.State() != StateNew {
		slog.Warn("dropping stale offer", "peer", from, "state", s.State())
		return nil
	}
	if !exists {
		var err error
		s, err = e.newSession(from, fromName, Responder)
		if err != nil {
			return err
		}
	}
	if err := s.handleOffer(desc); err != nil {
		e.closeSession(from, err)
		return err
	}
	return nil
}

// HandleAnswer completes our initiated negotiation.
func (e *Engine) HandleAnswer(from string, desc webrtc.SessionDescription) error {
	s, ok := e.session(from)
	if !ok {
		slog.Warn("dropping answer for unknown peer", "peer", from)
		return nil
	}
	if err := s.handleAnswer(desc); err != nil {
		e.closeSession(from, err)
		return err
	}
	return nil
}

// HandleCandidate routes a trickled candidate to its session. Offers and
// candidates travel as separate directed messages, so a candidate can be
// observed before the offer that introduces its sender; those are held
// until the session appears instead of being dropped.
func (e *Engine) HandleCandidate(from string, candidate webrtc.ICECandidateInit) error {
	e.mu.Lock()
	s, ok := e.sessions[from]
	if !ok {
		if !e.closed && len(e.early[from]) < earlyCandidateLimit {
			e.early[from] = append(e.early[from], candidate)
		}
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return s.handleCandidate(candidate)
}

// HandleLeft tears down the session for a departed participant.
func (e *Engine) HandleLeft(remoteID string) {
	e.closeSession(remoteID, ErrPeerLeft)
}

// SetAudioEnabled swaps the microphone track in or out across every open
// session. Local operation only; no renegotiation or signaling.
func (e *Engine) SetAudioEnabled(enabled bool) {
	var track webrtc.TrackLocal
	if enabled && e.local != nil {
		track = e.local.AudioTrack()
	}
	for _, s := range e.snapshot() {
		s.replaceAudio(track)
	}
}

// SetVideoEnabled swaps the camera track in or out across every open
// session.
func (e *Engine) SetVideoEnabled(enabled bool) {
	var track webrtc.TrackLocal
	if enabled && e.local != nil {
		track = e.local.VideoTrack()
	}
	for _, s := range e.snapshot() {
		s.replaceVideo(track)
	}
}

// ReplaceVideoTrack substitutes the outgoing video track in every open
// session, keeping each session connected. Used for the screen-share swap.
func (e *Engine) ReplaceVideoTrack(track webrtc.TrackLocal) {
	for _, s := range e.snapshot() {
		s.replaceVideo(track)
	}
}

// Session returns the live session for the remote id, if any.
func (e *Engine) Session(remoteID string) (*Session, bool) {
	return e.session(remoteID)
}

// Close tears down every session. The engine cannot be reused.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.early = nil
	sessions := e.sessions
	e.sessions = make(map[string]*Session)
	e.mu.Unlock()

	for _, s := range sessions {
		s.close(ErrEngineClosed)
	}
}

func (e *Engine) newSession(remoteID, remoteName string, role Role) (*Session, error) {
	pc, err := e.api.NewPeerConnection(e.rtcCfg)
	if err != nil {
		return nil, newError("create peer connection", remoteID, err)
	}

	s := &Session{
		engine:     e,
		remoteID:   remoteID,
		remoteName: remoteName,
		role:       role,
		state:      StateNew,
		pc:         pc,
	}
	s.applyCandidate = pc.AddICECandidate

	if err := e.attachLocal(s, pc); err != nil {
		pc.Close()
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		e.sig.Send(addressed(protocol.TypeICECandidate, remoteID, protocol.CandidatePayload{
			Candidate: c.ToJSON(),
		}))
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.mu.Lock()
			if s.state == StateAnswerSent || s.state == StateOfferSent {
				s.state = StateConnected
			}
			s.mu.Unlock()
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			e.closeSession(remoteID, ErrConnectionLost)
		}
	})

	if e.onTrack != nil {
		pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			e.onTrack(remoteID, track, receiver)
		})
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		pc.Close()
		return nil, newError("new session", remoteID, ErrEngineClosed)
	}
	if _, exists := e.sessions[remoteID]; exists {
		e.mu.Unlock()
		pc.Close()
		return nil, newError("new session", remoteID, ErrDuplicateSession)
	}
	e.sessions[remoteID] = s
	early := e.early[remoteID]
	delete(e.early, remoteID)
	e.mu.Unlock()

	// Candidates that overtook the offer introducing this remote join the
	// session's queue and flush once the remote description lands.
	for _, c := range early {
		s.handleCandidate(c)
	}

	slog.Info("session created", "peer", remoteID, "role", role)
	return s, nil
}

// attachLocal adds the shared capture tracks to the connection, falling
// back to receive-only transceivers for any kind we cannot send.
func (e *Engine) attachLocal(s *Session, pc *webrtc.PeerConnection) error {
	var audio, video webrtc.TrackLocal
	if e.local != nil {
		audio = e.local.AudioTrack()
		video = e.local.VideoTrack()
	}

	if audio != nil {
		sender, err := pc.AddTrack(audio)
		if err != nil {
			return newError("add audio track", s.remoteID, err)
		}
		s.audioSender = sender
	} else {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return newError("add audio transceiver", s.remoteID, err)
		}
	}

	if video != nil {
		sender, err := pc.AddTrack(video)
		if err != nil {
			return newError("add video track", s.remoteID, err)
		}
		s.videoSender = sender
	} else {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return newError("add video transceiver", s.remoteID, err)
		}
	}
	return nil
}

func (e *Engine) session(remoteID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[remoteID]
	return s, ok
}

func (e *Engine) snapshot() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}

// closeSession removes the session and releases its resources. Safe to
// call from any goroutine and for already-gone sessions.
func (e *Engine) closeSession(remoteID string, reason error) {
	e.mu.Lock()
	delete(e.early, remoteID)
	s, ok := e.sessions[remoteID]
	if ok {
		delete(e.sessions, remoteID)
	}
	e.mu.Unlock()
	if ok {
		s.close(reason)
	}
}
