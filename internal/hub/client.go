// Package hub implements the websocket transport: per-connection clients,
// the room registry, and room-scoped broadcast.
package hub

import (
	"encoding/json"
	"log"
	"time"

	"watchparty/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384
)

// Envelope is the wire frame carrying a named event. An inbound frame with a
// non-nil ID requests an acknowledgement under the same ID.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    *uint64         `json:"id,omitempty"`
}

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	id string

	// Callback for handling incoming messages.
	IncomingHandler func(*Client, []byte)

	// Callback invoked once after the connection is gone and the client has
	// been removed from the hub.
	DisconnectHandler func(*Client)
}

func newClient(h *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		id:   id,
		send: make(chan []byte, 256),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Join registers the connection into a transport room.
func (c *Client) Join(room string) { c.hub.JoinRoom(c.id, room) }

// Leave removes the connection from a transport room.
func (c *Client) Leave(room string) { c.hub.LeaveRoom(c.id, room) }

// Send emits a named event to this connection only.
func (c *Client) Send(event string, payload any) {
	c.sendEnvelope(Envelope{Event: event, Data: marshalData(event, payload)})
}

// Reply emits an acknowledgement for the inbound frame with the given ID.
func (c *Client) Reply(id uint64, event string, payload any) {
	c.sendEnvelope(Envelope{Event: event, ID: &id, Data: marshalData(event, payload)})
}

// Close forcibly disconnects the client. The read pump observes the closed
// connection and runs the normal disconnect path.
func (c *Client) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (c *Client) sendEnvelope(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Printf("marshal %s envelope error: %v", env.Event, err)
		return
	}
	c.trySend(frame)
}

func marshalData(event string, payload any) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s payload error: %v", event, err)
		return nil
	}
	return data
}

// ReadPump pumps messages from the websocket connection to the handler.
// It runs in the connection's goroutine and owns the disconnect sequence.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		if c.DisconnectHandler != nil {
			c.DisconnectHandler(c)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ReadPump error (conn %s): %v", c.id, err)
			}
			break
		}

		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend attempts to queue a frame, handling closed channels and full buffers.
func (c *Client) trySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			middleware.BackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.send <- message:
	default:
		// Buffer full, drop the frame. The client re-syncs on the next
		// state broadcast.
		middleware.BackpressureDrops.WithLabelValues("full").Inc()
		log.Printf("Conn %s: buffer full, dropped frame", c.id)
	}
}
