package room

import (
	"context"
	"testing"

	"watchparty/internal/models"
	"watchparty/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) (*Directory, *store.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := store.New(client)
	return NewDirectory(s), s
}

func fakeParticipant(sid string) models.Participant {
	return models.Participant{
		ID:       gofakeit.UUID(),
		Username: gofakeit.Username(),
		Avatar:   gofakeit.URL(),
		SID:      sid,
	}
}

var testAnime = models.AnimeInfo{Slug: "x", Season: 1, Episode: 1}

func TestDirectory_JoinCreatesRoom(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	first := fakeParticipant("c1")
	snap, err := d.Join(ctx, "r1", "pw", testAnime, first)
	require.NoError(t, err)

	assert.True(t, snap.Created)
	require.Len(t, snap.Users, 1)
	assert.True(t, snap.Users[0].Owner, "first joiner becomes owner")
	assert.True(t, snap.Users[0].Moderator, "first joiner becomes moderator")
	assert.False(t, snap.ControlledByMods)
	assert.Empty(t, snap.Banned)
	assert.Empty(t, snap.Muted)
	assert.False(t, snap.IsMuted)
}

func TestDirectory_JoinExistingRoom(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	first := fakeParticipant("c1")
	_, err := d.Join(ctx, "r1", "pw", testAnime, first)
	require.NoError(t, err)

	second := fakeParticipant("c2")
	snap, err := d.Join(ctx, "r1", "pw", testAnime, second)
	require.NoError(t, err)

	assert.False(t, snap.Created)
	require.Len(t, snap.Users, 2)
	assert.False(t, snap.Users[1].Owner)
	assert.False(t, snap.Users[1].Moderator)
}

func TestDirectory_JoinRejections(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	first := fakeParticipant("c1")
	_, err := d.Join(ctx, "r1", "pw", testAnime, first)
	require.NoError(t, err)

	t.Run("Duplicate user id", func(t *testing.T) {
		dup := first
		dup.SID = "c9"
		_, err := d.Join(ctx, "r1", "pw", testAnime, dup)
		assert.ErrorIs(t, err, ErrAlreadyInRoom)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, err := d.Join(ctx, "r1", "wrong", testAnime, fakeParticipant("c2"))
		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("Banned identity", func(t *testing.T) {
		outcast := fakeParticipant("c3")
		require.NoError(t, d.SetBanned(ctx, "r1", []models.ReducedParticipant{outcast.Reduce()}))
		_, err := d.Join(ctx, "r1", "pw", testAnime, outcast)
		assert.ErrorIs(t, err, ErrBanned)
	})

	t.Run("Descriptor mismatch", func(t *testing.T) {
		other := models.AnimeInfo{Slug: "x", Season: 1, Episode: 2}
		_, err := d.Join(ctx, "r1", "pw", other, fakeParticipant("c4"))
		assert.ErrorIs(t, err, ErrAnimeMismatch)
	})
}

func TestDirectory_LeaveRemovesByConnID(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.Join(ctx, "r1", "pw", testAnime, fakeParticipant("c1"))
	require.NoError(t, err)
	_, err = d.Join(ctx, "r1", "pw", testAnime, fakeParticipant("c2"))
	require.NoError(t, err)

	remaining, err := d.Leave(ctx, "r1", "c1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c2", remaining[0].SID)

	// Leaving an unknown room is a no-op.
	remaining, err = d.Leave(ctx, "ghost", "c1")
	require.NoError(t, err)
	assert.Nil(t, remaining)
}

func TestDirectory_PurgeDeletesAllRoomKeys(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.Join(ctx, "r1", "pw", testAnime, fakeParticipant("c1"))
	require.NoError(t, err)

	require.NoError(t, d.Purge(ctx, "r1"))

	keys, err := s.Keys(ctx, "room:r1:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// A join after the purge behaves as room creation again.
	snap, err := d.Join(ctx, "r1", "other-pw", testAnime, fakeParticipant("c5"))
	require.NoError(t, err)
	assert.True(t, snap.Created)
	assert.True(t, snap.Users[0].Owner)
}

func TestDirectory_SessionBindings(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	binding, err := d.Binding(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, binding)

	want := models.SessionBinding{Room: "r1", UserID: "u1"}
	require.NoError(t, d.PutBinding(ctx, "c1", want))

	binding, err = d.Binding(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, binding)
	assert.Equal(t, want, *binding)

	require.NoError(t, d.DeleteBinding(ctx, "c1"))
	binding, err = d.Binding(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, binding)
}

func TestDirectory_ControlMode(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.Join(ctx, "r1", "pw", testAnime, fakeParticipant("c1"))
	require.NoError(t, err)

	controlled, err := d.ControlledByMods(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, controlled)

	require.NoError(t, d.SetControlMode(ctx, "r1", true))
	controlled, err = d.ControlledByMods(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, controlled)
}

func TestDirectory_CanControlPlayback(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	owner := fakeParticipant("c1")
	_, err := d.Join(ctx, "r1", "pw", testAnime, owner)
	require.NoError(t, err)
	_, err = d.Join(ctx, "r1", "pw", testAnime, fakeParticipant("c2"))
	require.NoError(t, err)

	// Control mode disabled: anyone may control playback.
	ok, err := d.CanControlPlayback(ctx, "r1", "c2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.SetControlMode(ctx, "r1", true))

	// Enabled: only moderators.
	ok, err = d.CanControlPlayback(ctx, "r1", "c2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.CanControlPlayback(ctx, "r1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown connection in a controlled room.
	ok, err = d.CanControlPlayback(ctx, "r1", "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
