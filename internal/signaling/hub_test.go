package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GZancewicz/web-conference/internal/protocol"
	"github.com/GZancewicz/web-conference/internal/registry"
)

const readTimeout = 2 * time.Second

type testServer struct {
	*httptest.Server
	reg *registry.Registry
	hub *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := registry.New()
	hub := NewHub(reg)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, reg: reg, hub: hub}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, s *testServer) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(msg *protocol.Message) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("send %s: %v", msg.Type, err)
	}
}

// read returns the next message within the read timeout.
func (c *testClient) read() *protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return &msg
}

// expect reads the next message and asserts its type.
func (c *testClient) expect(msgType string) *protocol.Message {
	c.t.Helper()
	msg := c.read()
	if msg.Type != msgType {
		c.t.Fatalf("got message type %q, want %q", msg.Type, msgType)
	}
	return msg
}

// join enters the room and consumes the snapshot, remembering our id.
func (c *testClient) join(roomID, name string) protocol.ExistingMembersPayload {
	c.t.Helper()
	c.send(protocol.MustNew(protocol.TypeJoin, protocol.JoinPayload{RoomID: roomID, DisplayName: name}))
	msg := c.expect(protocol.TypeExistingMembers)
	var snapshot protocol.ExistingMembersPayload
	if err := msg.DecodePayload(&snapshot); err != nil {
		c.t.Fatalf("decode snapshot: %v", err)
	}
	c.id = snapshot.SelfID
	return snapshot
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestJoinSnapshotAndNotification(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv)
	snapshotA := a.join("abc-123", "Alice")
	if snapshotA.SelfID == "" {
		t.Fatal("snapshot missing self id")
	}
	if len(snapshotA.Members) != 0 {
		t.Fatalf("first joiner snapshot has %d members, want 0", len(snapshotA.Members))
	}

	b := dial(t, srv)
	snapshotB := b.join("abc-123", "Bob")
	if len(snapshotB.Members) != 1 || snapshotB.Members[0].ID != a.id {
		t.Fatalf("B's snapshot = %+v, want exactly [Alice]", snapshotB.Members)
	}
	if snapshotB.Members[0].DisplayName != "Alice" {
		t.Fatalf("member display name = %q, want Alice", snapshotB.Members[0].DisplayName)
	}

	joined := a.expect(protocol.TypeParticipantJoined)
	var member protocol.Member
	if err := joined.DecodePayload(&member); err != nil {
		t.Fatalf("decode participant-joined: %v", err)
	}
	if member.ID != b.id || member.DisplayName != "Bob" {
		t.Fatalf("participant-joined = %+v, want Bob", member)
	}
}

func TestDirectedRelayStampsSender(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	a.join("room", "Alice")
	b := dial(t, srv)
	b.join("room", "Bob")
	a.expect(protocol.TypeParticipantJoined)

	// The relay must not interpret the payload; any opaque body works.
	offer := &protocol.Message{
		Type:    protocol.TypeOffer,
		To:      a.id,
		Payload: json.RawMessage(`{"description":{"type":"offer","sdp":"v=0"}}`),
	}
	b.send(offer)

	got := a.expect(protocol.TypeOffer)
	if got.From != b.id || got.FromName != "Bob" {
		t.Fatalf("relayed offer from = (%q, %q), want Bob's identity", got.From, got.FromName)
	}
	if string(got.Payload) != string(offer.Payload) {
		t.Fatalf("payload altered in relay: %s", got.Payload)
	}
}

func TestDirectedToDepartedPeerIsDropped(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	a.join("room", "Alice")
	b := dial(t, srv)
	b.join("room", "Bob")
	a.expect(protocol.TypeParticipantJoined)
	departedID := b.id

	b.conn.Close()
	a.expect(protocol.TypeParticipantLeft)

	msg := &protocol.Message{
		Type:    protocol.TypeAnswer,
		To:      departedID,
		Payload: json.RawMessage(`{"description":{"type":"answer","sdp":"v=0"}}`),
	}
	a.send(msg)

	// No error comes back; the next thing A sees is its own chat echo.
	a.send(protocol.MustNew(protocol.TypeChatMessage, protocol.ChatPayload{Text: "still here"}))
	echo := a.expect(protocol.TypeChatMessage)
	var chat protocol.ChatPayload
	if err := echo.DecodePayload(&chat); err != nil || chat.Text != "still here" {
		t.Fatalf("chat echo = %+v, %v", chat, err)
	}
}

func TestChatEchoesToEveryoneOnceWithTimestamp(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	a.join("room", "Alice")
	b := dial(t, srv)
	b.join("room", "Bob")
	a.expect(protocol.TypeParticipantJoined)

	a.send(protocol.MustNew(protocol.TypeChatMessage, protocol.ChatPayload{Text: "hello"}))

	for _, c := range []*testClient{a, b} {
		msg := c.expect(protocol.TypeChatMessage)
		var chat protocol.ChatPayload
		if err := msg.DecodePayload(&chat); err != nil {
			t.Fatalf("decode chat: %v", err)
		}
		if chat.Text != "hello" {
			t.Fatalf("chat text = %q, want hello", chat.Text)
		}
		if msg.From != a.id || msg.FromName != "Alice" {
			t.Fatalf("chat sender = (%q, %q), want Alice's identity", msg.From, msg.FromName)
		}
		if msg.Timestamp == 0 {
			t.Fatal("chat missing server timestamp")
		}
	}

	// Exactly once: a second message is the next thing either side sees.
	b.send(protocol.MustNew(protocol.TypeChatMessage, protocol.ChatPayload{Text: "second"}))
	for _, c := range []*testClient{a, b} {
		msg := c.expect(protocol.TypeChatMessage)
		var chat protocol.ChatPayload
		if err := msg.DecodePayload(&chat); err != nil || chat.Text != "second" {
			t.Fatalf("expected the second chat next, got %+v (%v)", chat, err)
		}
	}
}

func TestToggleBroadcast(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	a.join("room", "Alice")
	b := dial(t, srv)
	b.join("room", "Bob")
	a.expect(protocol.TypeParticipantJoined)

	a.send(protocol.MustNew(protocol.TypeToggleAudio, protocol.TogglePayload{Enabled: false}))

	msg := b.expect(protocol.TypeToggleAudio)
	var toggle protocol.TogglePayload
	if err := msg.DecodePayload(&toggle); err != nil {
		t.Fatalf("decode toggle: %v", err)
	}
	if toggle.Enabled || msg.From != a.id {
		t.Fatalf("toggle = (enabled=%v, from=%q), want (false, Alice)", toggle.Enabled, msg.From)
	}
}

func TestAbruptDisconnectCleansUp(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	a.join("room", "Alice")
	b := dial(t, srv)
	b.join("room", "Bob")
	a.expect(protocol.TypeParticipantJoined)
	aID := a.id

	// Abrupt drop, no close handshake.
	a.conn.Close()

	left := b.expect(protocol.TypeParticipantLeft)
	var member protocol.Member
	if err := left.DecodePayload(&member); err != nil || member.ID != aID {
		t.Fatalf("participant-left = %+v (%v), want Alice", member, err)
	}

	// Room persists with B alone.
	members := srv.reg.MembersOf("room")
	if len(members) != 1 || members[0].ID != b.id {
		t.Fatalf("room members after A left = %v, want [Bob]", members)
	}

	// Last member leaving destroys the room.
	b.conn.Close()
	waitFor(t, "room destruction", func() bool { return srv.reg.RoomCount() == 0 })
}

func TestMalformedMessagesAreRejectedWithoutRegistration(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	// Missing display name: rejected, nothing registered.
	c.send(protocol.MustNew(protocol.TypeJoin, protocol.JoinPayload{RoomID: "room"}))
	errMsg := c.expect(protocol.TypeError)
	var payload protocol.ErrorPayload
	if err := errMsg.DecodePayload(&payload); err != nil || payload.Error == "" {
		t.Fatalf("error payload = %+v (%v)", payload, err)
	}
	if srv.reg.RoomCount() != 0 {
		t.Fatal("rejected join registered a room")
	}

	// Directed message before joining: dropped, connection stays up.
	c.send(&protocol.Message{Type: protocol.TypeOffer, To: "nobody", Payload: json.RawMessage(`{}`)})

	// Unknown type: dropped, connection stays up.
	c.send(&protocol.Message{Type: "bogus"})

	// The same connection can still join normally.
	snapshot := c.join("room", "Alice")
	if snapshot.SelfID == "" {
		t.Fatal("join after malformed traffic failed")
	}
}
