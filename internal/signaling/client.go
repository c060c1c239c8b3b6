package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GZancewicz/web-conference/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers with many
	// candidates stay well under this.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection. When it fills, further messages to
	// this client are dropped rather than blocking the relay.
	sendBuffer = 256
)

// Client wraps a single websocket connection. The hub addresses it by the
// server-assigned participant id.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// id is assigned at upgrade time and doubles as the participant id
	// once the client joins a room.
	id string

	// displayName and roomID are set by handleJoin and only read from the
	// connection's own goroutine afterwards.
	displayName string
	roomID      string

	send chan *protocol.Message

	closeOnce      sync.Once
	disconnectOnce sync.Once
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// trySend enqueues a message without blocking. A full buffer means the
// client is too slow to keep up; the message is dropped.
func (c *Client) trySend(msg *protocol.Message) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("send buffer full, dropping message", "client", c.id, "type", msg.Type)
	}
}

// closeSend closes the outbound channel exactly once, stopping writePump.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump pumps messages from the websocket connection to the hub.
//
// There is at most one reader per connection; all inbound handling runs on
// this goroutine, which gives the per-connection serialization the hub
// relies on.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "client", c.id, "err", err)
			}
			return
		}
		c.hub.Handle(c, &msg)
	}
}

// writePump pumps messages from the send channel to the websocket
// connection and keeps the connection alive with periodic pings. It is the
// only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("write error", "client", c.id, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
