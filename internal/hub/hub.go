package hub

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Max total connections accepted by the process.
const maxTotalConns = 10000

// ErrConnLimit is returned when the process-wide connection cap is reached.
var ErrConnLimit = errors.New("server connection limit reached")

// Hub tracks live websocket clients and their transport-room membership.
// Room membership here is transport bookkeeping only; authoritative room
// state lives in the session store.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register wraps a websocket connection into a Client with a fresh
// connection identifier and tracks it.
func (h *Hub) Register(conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= maxTotalConns {
		return nil, ErrConnLimit
	}

	client := newClient(h, conn, uuid.NewString())
	h.clients[client.id] = client
	return client, nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for room, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// JoinRoom adds a connection to a transport room.
func (h *Hub) JoinRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connID] = c
}

// LeaveRoom removes a connection from a transport room.
func (h *Hub) LeaveRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize returns the number of live connections registered to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ToRoom emits a named event to every connection in the room.
func (h *Hub) ToRoom(room, event string, payload any) {
	for _, c := range h.roomMembers(room) {
		c.Send(event, payload)
	}
}

// ToRoomExcept emits a named event to every connection in the room except one.
func (h *Hub) ToRoomExcept(room, exceptConnID, event string, payload any) {
	for _, c := range h.roomMembers(room) {
		if c.id == exceptConnID {
			continue
		}
		c.Send(event, payload)
	}
}

// Disconnect forcibly closes the connection with the given identifier.
func (h *Hub) Disconnect(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.Close()
	}
}

func (h *Hub) roomMembers(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	return members
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		if err := c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
			log.Printf("failed to write close message for conn %s: %v", id, err)
		}
		if err := c.conn.Close(); err != nil {
			log.Printf("failed to close websocket for conn %s: %v", id, err)
		}
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)

	return nil
}
