package server

import (
	"strings"
	"testing"

	"watchparty/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_BroadcastsWithReducedAuthor(t *testing.T) {
	s, fb, _, member := twoUserRoom(t)

	s.dispatch(member, "", frame(t, EventMessage, 0, map[string]any{"message": "  hello room  "}))

	events := fb.named(EventMessage)
	require.Len(t, events, 1)
	assert.Equal(t, "movie-night", events[0].Room)
	assert.Empty(t, events[0].Except, "chat messages echo back to the sender")

	payload := events[0].Payload.(map[string]any)
	assert.Equal(t, "hello room", payload["content"])

	author := payload["author"].(models.ReducedParticipant)
	assert.Equal(t, "id-bob", author.ID)
	assert.Equal(t, "bob", author.Username)
}

func TestMessage_MutedSenderDropped(t *testing.T) {
	s, fb, owner, member := twoUserRoom(t)

	s.dispatch(owner, "", frame(t, EventMute, 0, map[string]any{"target": "id-bob"}))
	fb.reset()

	s.dispatch(member, "", frame(t, EventMessage, 0, map[string]any{"message": "can you hear me"}))

	assert.Empty(t, fb.named(EventMessage))
}

func TestMessage_InvalidPayloadDropped(t *testing.T) {
	s, fb, _, member := twoUserRoom(t)

	for _, data := range []map[string]any{
		{"message": ""},
		{"message": "   "},
		{"message": strings.Repeat("x", 251)},
	} {
		s.dispatch(member, "", frame(t, EventMessage, 0, data))
	}

	assert.Empty(t, fb.named(EventMessage))
}

func TestMessage_WithoutRoomDropped(t *testing.T) {
	s, fb, _ := newTestServer(t)
	conn := &fakeConn{id: "conn-9"}

	s.dispatch(conn, "", frame(t, EventMessage, 0, map[string]any{"message": "anybody home"}))

	assert.Empty(t, fb.events)
}
