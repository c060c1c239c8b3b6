package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"

	"github.com/GZancewicz/web-conference/internal/config"
	"github.com/GZancewicz/web-conference/internal/media"
	"github.com/GZancewicz/web-conference/internal/peer"
	"github.com/GZancewicz/web-conference/internal/protocol"
	"github.com/GZancewicz/web-conference/internal/roster"
	"github.com/GZancewicz/web-conference/internal/transport"
	"github.com/GZancewicz/web-conference/internal/ui"
)

const joinTimeout = 10 * time.Second

// Session wires one room visit together: transport, media, negotiation
// engine, roster and the room view. It also implements ui.Controller.
type Session struct {
	cfg      *config.Client
	roomID   string
	selfName string

	client  *transport.Client
	handler *transport.Handler
	engine  *peer.Engine
	roster  *roster.Roster
	source  *media.Source
	send    func(*protocol.Message)

	selfID string

	mu          sync.Mutex
	program     *tea.Program
	audioOn     bool
	videoOn     bool
	sharing     bool
	assistantOK bool
}

func NewSession(cfg *config.Client, roomID, selfName string) *Session {
	return &Session{
		cfg:      cfg,
		roomID:   roomID,
		selfName: selfName,
	}
}

// Run joins the room and blocks until the user leaves or the transport
// drops. A dropped transport ends the session; rejoining is a fresh Run.
func (s *Session) Run() error {
	// Local media first: knowing what we captured decides the initial
	// mic/cam state shown in the view. Capture failure is never fatal.
	api, selector, err := media.NewAPI()
	if err != nil {
		return fmt.Errorf("media api: %w", err)
	}
	s.source = media.Capture(selector)
	defer s.source.Close()
	s.audioOn = s.source.HasAudio()
	s.videoOn = s.source.HasVideo()

	s.client = transport.NewClient(s.cfg.ServerURL)
	if err := s.client.Connect(); err != nil {
		return err
	}
	defer s.client.Close()
	s.send = s.client.Send

	s.handler = transport.NewHandler(s.client)
	go s.handler.Start()

	s.assistantOK = queryAssistantAvailable(s.cfg.ServerURL)

	s.send(protocol.MustNew(protocol.TypeJoin, protocol.JoinPayload{
		RoomID:      s.roomID,
		DisplayName: s.selfName,
	}))

	snapshot, err := s.awaitJoin()
	if err != nil {
		return err
	}
	s.selfID = snapshot.SelfID

	// Remote rosters assume new arrivals are unmuted; tell the room about
	// any capture we joined without.
	s.announceInitialState()

	s.roster = roster.New(func(entries []roster.Entry) {
		s.push(ui.RosterMsg(entries))
	})

	s.engine = peer.NewEngine(peer.Config{
		API:        api,
		ICEServers: s.iceServers(),
		Signaler:   s.client,
		Local:      s.source,
		OnTrack:    s.onRemoteTrack,
		OnClosed: func(remoteID string, reason error) {
			// Media failure surfaces as a roster removal, same as a leave.
			s.roster.Remove(remoteID)
		},
	})
	defer s.engine.Close()

	for _, m := range snapshot.Members {
		s.roster.Add(m.ID, m.DisplayName)
	}
	// We joined after everyone in the snapshot, so we initiate toward
	// each of them; later arrivals will initiate toward us.
	s.engine.HandleSnapshot(snapshot.Members)

	model := ui.NewRoomModel(s.roomID, s.selfName, s.audioOn, s.videoOn, s)
	program := tea.NewProgram(model)
	s.mu.Lock()
	s.program = program
	s.mu.Unlock()

	go s.dispatch()

	_, err = program.Run()
	return err
}

// awaitJoin waits for the server's snapshot reply to our join.
func (s *Session) awaitJoin() (transport.Snapshot, error) {
	select {
	case snapshot := <-s.handler.Joined:
		return snapshot, nil
	case errMsg := <-s.handler.Error:
		return transport.Snapshot{}, fmt.Errorf("join rejected: %s", errMsg)
	case <-s.handler.Done:
		return transport.Snapshot{}, fmt.Errorf("connection closed during join")
	case <-time.After(joinTimeout):
		return transport.Snapshot{}, fmt.Errorf("timed out waiting to join room %s", s.roomID)
	}
}

// dispatch is the single goroutine consuming transport events. Running
// every signaling event through one loop serializes the engine's inbound
// side per session.
func (s *Session) dispatch() {
	for {
		select {
		case m := <-s.handler.MemberJoined:
			// The new arrival initiates; we answer their offer when it
			// comes. Only the roster changes now.
			s.roster.Add(m.ID, m.DisplayName)

		case m := <-s.handler.MemberLeft:
			s.engine.HandleLeft(m.ID)
			s.roster.Remove(m.ID)

		case o := <-s.handler.Offer:
			if err := s.engine.HandleOffer(o.From, o.FromName, o.Description); err != nil {
				slog.Error("offer handling failed", "peer", o.From, "err", err)
			}

		case a := <-s.handler.Answer:
			if err := s.engine.HandleAnswer(a.From, a.Description); err != nil {
				slog.Error("answer handling failed", "peer", a.From, "err", err)
			}

		case c := <-s.handler.Candidate:
			if err := s.engine.HandleCandidate(c.From, c.Candidate); err != nil {
				slog.Warn("candidate handling failed", "peer", c.From, "err", err)
			}

		case chat := <-s.handler.Chat:
			s.push(ui.ChatMsg{
				From:      chat.FromName,
				Text:      chat.Text,
				Timestamp: time.UnixMilli(chat.Timestamp),
				Self:      chat.From == s.selfID,
			})

		case t := <-s.handler.AudioToggled:
			if t.From != s.selfID {
				s.roster.SetAudio(t.From, t.Enabled)
			}

		case t := <-s.handler.VideoToggled:
			if t.From != s.selfID {
				s.roster.SetVideo(t.From, t.Enabled)
			}

		case errMsg := <-s.handler.Error:
			s.push(ui.ErrMsg(errMsg))

		case <-s.handler.Done:
			s.push(ui.DisconnectedMsg{})
			return
		}
	}
}

// SendChat implements ui.Controller. "/ai <text>" goes to the room
// assistant when it is available.
func (s *Session) SendChat(text string) {
	if strings.HasPrefix(text, "/ai ") {
		s.askAssistant(strings.TrimPrefix(text, "/ai "))
		return
	}
	s.send(protocol.MustNew(protocol.TypeChatMessage, protocol.ChatPayload{Text: text}))
}

// announceInitialState broadcasts the capture we actually have after a
// degraded acquisition, so other rosters match reality.
func (s *Session) announceInitialState() {
	if !s.audioOn {
		s.send(protocol.MustNew(protocol.TypeToggleAudio, protocol.TogglePayload{Enabled: false}))
	}
	if !s.videoOn {
		s.send(protocol.MustNew(protocol.TypeToggleVideo, protocol.TogglePayload{Enabled: false}))
	}
}

// ToggleAudio implements ui.Controller: swaps the mic track in or out on
// every session and announces the new state to the room.
func (s *Session) ToggleAudio() bool {
	s.mu.Lock()
	s.audioOn = !s.audioOn
	enabled := s.audioOn
	s.mu.Unlock()

	s.engine.SetAudioEnabled(enabled)
	s.send(protocol.MustNew(protocol.TypeToggleAudio, protocol.TogglePayload{Enabled: enabled}))
	return enabled
}

// ToggleVideo implements ui.Controller. While a screen share is active only
// the local flag changes: the share keeps streaming, and the swap plus the
// broadcast happen when the share stops, so the room never sees a
// camera-off participant who is still sending video.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	s.videoOn = !s.videoOn
	enabled := s.videoOn
	sharing := s.sharing
	s.mu.Unlock()

	if sharing {
		return enabled
	}
	s.engine.SetVideoEnabled(enabled)
	s.send(protocol.MustNew(protocol.TypeToggleVideo, protocol.TogglePayload{Enabled: enabled}))
	return enabled
}

// ToggleScreenShare implements ui.Controller: swaps the outgoing video
// track in place on every connected session, no renegotiation.
func (s *Session) ToggleScreenShare() (bool, error) {
	s.mu.Lock()
	sharing := s.sharing
	videoOn := s.videoOn
	s.mu.Unlock()

	if sharing {
		s.source.StopScreenShare()
		if videoOn {
			s.engine.ReplaceVideoTrack(s.source.VideoTrack())
		} else {
			s.engine.ReplaceVideoTrack(nil)
		}
		s.setSharing(false)
		// Camera toggles during the share were deferred; announce where
		// the camera actually landed.
		s.send(protocol.MustNew(protocol.TypeToggleVideo, protocol.TogglePayload{Enabled: videoOn}))
		return false, nil
	}

	track, err := s.source.StartScreenShare()
	if err != nil {
		return false, err
	}
	s.engine.ReplaceVideoTrack(track)
	s.setSharing(true)
	return true, nil
}

// Leave implements ui.Controller.
func (s *Session) Leave() {
	s.engine.Close()
	s.client.Close()
}

func (s *Session) setSharing(v bool) {
	s.mu.Lock()
	s.sharing = v
	s.mu.Unlock()
}

// onRemoteTrack drains inbound RTP. Rendering is out of scope for the
// terminal client, but the read loop must run for the transport to stay
// healthy.
func (s *Session) onRemoteTrack(remoteID string, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	s.push(ui.StatusMsg(fmt.Sprintf("receiving %s from %s", track.Kind(), remoteID)))
	go func() {
		for {
			if _, _, err := track.ReadRTP(); err != nil {
				return
			}
		}
	}()
}

func (s *Session) iceServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: s.cfg.STUNServers()}}
	if turn := s.cfg.TURNServers(); turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   s.cfg.TURNUser,
			Credential: s.cfg.TURNPass,
		})
	}
	return servers
}

// push forwards a message to the room view if it is running.
func (s *Session) push(msg tea.Msg) {
	s.mu.Lock()
	program := s.program
	s.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

// askAssistant asks the room assistant and shows the answer locally.
func (s *Session) askAssistant(text string) {
	s.mu.Lock()
	available := s.assistantOK
	s.mu.Unlock()
	if !available {
		s.push(ui.ErrMsg("assistant is not available on this server"))
		return
	}

	go func() {
		body, _ := json.Marshal(map[string]string{"room_id": s.roomID, "text": text})
		resp, err := http.Post(httpBase(s.cfg.ServerURL)+"/assistant/chat", "application/json", strings.NewReader(string(body)))
		if err != nil {
			s.push(ui.ErrMsg("assistant: " + err.Error()))
			return
		}
		defer resp.Body.Close()

		var parsed struct {
			Reply string `json:"reply"`
		}
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&parsed) != nil {
			s.push(ui.ErrMsg("assistant request failed"))
			return
		}
		s.push(ui.ChatMsg{From: "assistant", Text: parsed.Reply, Timestamp: time.Now()})
	}()
}

// queryAssistantAvailable checks the collaborator once at session start.
func queryAssistantAvailable(wsURL string) bool {
	resp, err := http.Get(httpBase(wsURL) + "/assistant/available")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var parsed struct {
		Available bool `json:"available"`
	}
	if json.NewDecoder(resp.Body).Decode(&parsed) != nil {
		return false
	}
	return parsed.Available
}

// httpBase turns the signaling websocket URL into the server's HTTP base.
func httpBase(wsURL string) string {
	base := strings.TrimSuffix(wsURL, "/ws")
	base = strings.Replace(base, "wss://", "https://", 1)
	return strings.Replace(base, "ws://", "http://", 1)
}
