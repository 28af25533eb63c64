package server

import (
	"errors"
	"testing"

	"watchparty/internal/config"
	"watchparty/internal/identity"
	"watchparty/internal/room"
	"watchparty/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_MalformedFrameIgnored(t *testing.T) {
	s, fb, _ := newTestServer(t)
	conn := &fakeConn{id: "conn-1"}

	s.dispatch(conn, "", []byte("{not json"))
	s.dispatch(conn, "", []byte(`"just a string"`))

	assert.Empty(t, fb.events)
	assert.Empty(t, conn.replies)
	assert.False(t, conn.closed, "bad frames must not take the connection down")
}

func TestDispatch_UnknownEventIgnored(t *testing.T) {
	s, fb, _ := newTestServer(t)
	conn := &fakeConn{id: "conn-1"}

	s.dispatch(conn, "", frame(t, "selfDestruct", 7, map[string]any{}))

	assert.Empty(t, fb.events)
	assert.Empty(t, conn.replies, "unknown events get no acknowledgement")
}

func TestDispatch_AckEchoesIDAndEvent(t *testing.T) {
	s, _, resolver := newTestServer(t)
	resolver.users["alice"] = userFixture("alice")
	conn := &fakeConn{id: "conn-1"}

	s.dispatch(conn, "", frame(t, EventLogin, 42, map[string]any{
		"author": "alice", "room": "movie-night", "password": "secret",
		"anime": map[string]any{"slug": "cowboy-bebop", "season": 1, "episode": 5},
	}))

	reply := conn.lastReply(t)
	assert.Equal(t, uint64(42), reply.ID)
	assert.Equal(t, EventLogin, reply.Event)
}

func TestDispatch_InvalidLoginDataAnsweredWithError(t *testing.T) {
	s, _, _ := newTestServer(t)
	conn := &fakeConn{id: "conn-1"}

	s.dispatch(conn, "", []byte(`{"event":"login","id":3,"data":"not an object"}`))

	reply := conn.lastReply(t)
	require.Equal(t, uint64(3), reply.ID)
	assert.Equal(t, errorReply{Error: "Invalid login data"}, reply.Payload)
}

func TestDispatch_HandlerPanicDoesNotKillConnection(t *testing.T) {
	s, _, resolver := newTestServer(t)
	s.handlers["explode"] = func(ec *eventContext) error {
		panic("handler blew up")
	}
	conn := &fakeConn{id: "conn-1"}

	s.dispatch(conn, "", frame(t, "explode", 5, map[string]any{}))

	reply := conn.lastReply(t)
	assert.Equal(t, uint64(5), reply.ID)
	assert.Equal(t, errorReply{Error: "An unexpected error occurred"}, reply.Payload)
	assert.False(t, conn.closed)

	// Without an ack id the panic is swallowed entirely.
	s.dispatch(conn, "", frame(t, "explode", 0, map[string]any{}))
	assert.Len(t, conn.replies, 1)

	// The connection keeps working afterwards.
	resolver.users["alice"] = userFixture("alice")
	s.dispatch(conn, "", frame(t, EventLogin, 6, map[string]any{
		"author": "alice", "room": "movie-night", "password": "secret",
		"anime": map[string]any{"slug": "cowboy-bebop", "season": 1, "episode": 5},
	}))
	resp, ok := conn.lastReply(t).Payload.(loginResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
}

func TestDispatch_HandlerErrorAnsweredGenerically(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.handlers["failing"] = func(ec *eventContext) error {
		return errors.New("store unreachable")
	}
	conn := &fakeConn{id: "conn-1"}

	s.dispatch(conn, "", frame(t, "failing", 9, map[string]any{}))

	reply := conn.lastReply(t)
	assert.Equal(t, uint64(9), reply.ID)
	assert.Equal(t, errorReply{Error: "An unexpected error occurred"}, reply.Payload)
	assert.False(t, conn.closed)

	// Fire-and-forget failures are logged only.
	s.dispatch(conn, "", frame(t, "failing", 0, map[string]any{}))
	assert.Len(t, conn.replies, 1)
}

func TestDispatch_StoreFailureAnsweredGenerically(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessionStore := store.New(client)
	fb := newFakeBroadcast()
	resolver := &fakeIdentity{users: map[string]*identity.User{}}
	cfg := &config.Config{BotName: "System"}
	s := &Server{
		config:    cfg,
		store:     sessionStore,
		rooms:     room.NewDirectory(sessionStore),
		identity:  resolver,
		broadcast: fb,
		notifier:  NewSystemNotifier(fb, cfg.BotName, cfg.BotAvatar),
	}
	s.registerHandlers()

	resolver.users["alice"] = userFixture("alice")
	mr.Close()

	conn := &fakeConn{id: "conn-1"}
	s.dispatch(conn, "", frame(t, EventLogin, 4, map[string]any{
		"author": "alice", "room": "movie-night", "password": "secret",
		"anime": map[string]any{"slug": "cowboy-bebop", "season": 1, "episode": 5},
	}))

	reply := conn.lastReply(t)
	assert.Equal(t, uint64(4), reply.ID)
	assert.Equal(t, errorReply{Error: "An unexpected error occurred"}, reply.Payload)
	assert.False(t, conn.closed)
	assert.Empty(t, fb.events, "a failed login must not announce anything")
}

func TestDispatch_FireAndForgetNeverReplies(t *testing.T) {
	s, _, owner, _ := twoUserRoom(t)

	s.dispatch(owner, "", frame(t, EventMessage, 0, map[string]any{"message": "hi"}))
	s.dispatch(owner, "", frame(t, EventMute, 0, map[string]any{"target": "id-bob"}))

	assert.Empty(t, owner.replies[1:], "only the login acknowledgement is expected")
}
