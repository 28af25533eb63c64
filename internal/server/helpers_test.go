package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"watchparty/internal/config"
	"watchparty/internal/identity"
	"watchparty/internal/room"
	"watchparty/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	Room    string
	Except  string
	Event   string
	Payload any
}

// fakeBroadcast records everything the handlers broadcast instead of
// touching real websocket connections.
type fakeBroadcast struct {
	mu           sync.Mutex
	events       []sentEvent
	disconnected []string
	sizes        map[string]int
}

func newFakeBroadcast() *fakeBroadcast {
	return &fakeBroadcast{sizes: map[string]int{}}
}

func (f *fakeBroadcast) ToRoom(room, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Room: room, Event: event, Payload: payload})
}

func (f *fakeBroadcast) ToRoomExcept(room, exceptConnID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Room: room, Except: exceptConnID, Event: event, Payload: payload})
}

func (f *fakeBroadcast) RoomSize(room string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizes[room]
}

func (f *fakeBroadcast) Disconnect(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, connID)
}

func (f *fakeBroadcast) named(event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeBroadcast) systemMessages() []string {
	var out []string
	for _, e := range f.named(EventSystemMessage) {
		payload := e.Payload.(map[string]any)
		out = append(out, payload["content"].(string))
	}
	return out
}

func (f *fakeBroadcast) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	f.disconnected = nil
}

type replyRecord struct {
	ID      uint64
	Event   string
	Payload any
}

type fakeConn struct {
	id      string
	joined  []string
	left    []string
	sent    []sentEvent
	replies []replyRecord
	closed  bool
}

func (c *fakeConn) ID() string       { return c.id }
func (c *fakeConn) Join(room string) { c.joined = append(c.joined, room) }
func (c *fakeConn) Leave(room string) {
	c.left = append(c.left, room)
}
func (c *fakeConn) Send(event string, payload any) {
	c.sent = append(c.sent, sentEvent{Event: event, Payload: payload})
}
func (c *fakeConn) Reply(id uint64, event string, payload any) {
	c.replies = append(c.replies, replyRecord{ID: id, Event: event, Payload: payload})
}
func (c *fakeConn) Close() { c.closed = true }

func (c *fakeConn) lastReply(t *testing.T) replyRecord {
	t.Helper()
	require.NotEmpty(t, c.replies, "expected an acknowledgement")
	return c.replies[len(c.replies)-1]
}

// fakeIdentity resolves tokens from a fixed map.
type fakeIdentity struct {
	users map[string]*identity.User
}

func (f *fakeIdentity) Lookup(_ context.Context, token string) (*identity.User, error) {
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, identity.ErrNoUser
}

func newTestServer(t *testing.T) (*Server, *fakeBroadcast, *fakeIdentity) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessionStore := store.New(client)
	fb := newFakeBroadcast()
	resolver := &fakeIdentity{users: map[string]*identity.User{}}

	cfg := &config.Config{BotName: "System", BotAvatar: "https://cdn.example.com/bot.png"}
	s := &Server{
		config:    cfg,
		store:     sessionStore,
		rooms:     room.NewDirectory(sessionStore),
		identity:  resolver,
		broadcast: fb,
		notifier:  NewSystemNotifier(fb, cfg.BotName, cfg.BotAvatar),
	}
	s.registerHandlers()

	return s, fb, resolver
}

// frame builds an inbound envelope. ackID 0 means no acknowledgement.
func frame(t *testing.T, event string, ackID uint64, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	env := map[string]any{"event": event, "data": json.RawMessage(raw)}
	if ackID != 0 {
		env["id"] = ackID
	}
	out, err := json.Marshal(env)
	require.NoError(t, err)
	return out
}

func userFixture(username string) *identity.User {
	return &identity.User{
		ID:       "id-" + username,
		Username: username,
		Avatar:   "https://cdn.example.com/" + username + ".png",
	}
}

// loginUser registers an identity for token==username and logs the connection
// into the room, failing the test on a rejected login.
func loginUser(t *testing.T, s *Server, resolver *fakeIdentity, conn *fakeConn, username, roomName string) loginResponse {
	t.Helper()

	resolver.users[username] = userFixture(username)

	s.dispatch(conn, "", frame(t, EventLogin, 1, map[string]any{
		"author":   username,
		"room":     roomName,
		"password": "secret",
		"anime": map[string]any{
			"slug":    "cowboy-bebop",
			"season":  1,
			"episode": 5,
		},
	}))

	reply := conn.lastReply(t)
	resp, ok := reply.Payload.(loginResponse)
	require.True(t, ok, "login rejected: %+v", reply.Payload)
	require.True(t, resp.Success)
	return resp
}
