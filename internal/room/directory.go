// Package room owns the representation and transitions of per-room
// participant, ownership, ban and mute state, and the policy functions that
// gate who may change it.
package room

import (
	"context"
	"errors"

	"watchparty/internal/models"
	"watchparty/internal/store"
)

// Join rejection errors. The error text is the message returned to the client.
var (
	ErrAlreadyInRoom     = errors.New("You are already in this room")
	ErrIncorrectPassword = errors.New("Incorrect password")
	ErrBanned            = errors.New("You are banned from this room")
	ErrAnimeMismatch     = errors.New("Anime information does not match")
)

// Directory reads and replaces the membership, moderation and control state
// of rooms. Every operation is a full read-modify-write over the session
// store; no partial updates are exposed.
type Directory struct {
	store *store.SessionStore
}

// NewDirectory creates a Directory on top of the session store.
func NewDirectory(s *store.SessionStore) *Directory {
	return &Directory{store: s}
}

// Snapshot is the full room state returned to a successful joiner.
type Snapshot struct {
	Users            []models.Participant
	ControlledByMods bool
	Banned           []models.ReducedParticipant
	Muted            []models.ReducedParticipant
	IsMuted          bool
	Created          bool
}

// Join validates the join request against the room's stored state and inserts
// the participant. A room without a bound content descriptor does not exist
// yet; its first joiner initializes it and becomes owner and moderator.
func (d *Directory) Join(ctx context.Context, roomName, password string, anime models.AnimeInfo, participant models.Participant) (*Snapshot, error) {
	users, _, err := d.Participants(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if models.FindByID(users, participant.ID) != nil {
		return nil, ErrAlreadyInRoom
	}

	var storedPassword string
	hasPassword, err := d.store.GetJSON(ctx, store.RoomKey(roomName, store.FieldPassword), &storedPassword)
	if err != nil {
		return nil, err
	}
	if hasPassword && storedPassword != password {
		return nil, ErrIncorrectPassword
	}

	banned, err := d.Banned(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if models.ContainsID(banned, participant.ID) {
		return nil, ErrBanned
	}

	var storedAnime models.AnimeInfo
	hasAnime, err := d.store.GetJSON(ctx, store.RoomKey(roomName, store.FieldAnime), &storedAnime)
	if err != nil {
		return nil, err
	}
	if hasAnime && storedAnime != anime {
		return nil, ErrAnimeMismatch
	}

	muted, err := d.Muted(ctx, roomName)
	if err != nil {
		return nil, err
	}

	if !hasAnime {
		// First joiner creates the room and owns it.
		participant.Owner = true
		participant.Moderator = true
		users = []models.Participant{participant}

		err := d.store.MSetJSON(ctx, map[string]any{
			store.RoomKey(roomName, store.FieldAnime):              anime,
			store.RoomKey(roomName, store.FieldPassword):           password,
			store.RoomKey(roomName, store.FieldControlledByMods):   false,
			store.RoomKey(roomName, store.FieldUsers):              users,
			store.RoomKey(roomName, store.FieldBannedParticipants): []models.ReducedParticipant{},
			store.RoomKey(roomName, store.FieldMutedParticipants):  []models.ReducedParticipant{},
		})
		if err != nil {
			return nil, err
		}

		return &Snapshot{
			Users:            users,
			ControlledByMods: false,
			Banned:           []models.ReducedParticipant{},
			Muted:            []models.ReducedParticipant{},
			Created:          true,
		}, nil
	}

	users = append(users, participant)
	if err := d.SetParticipants(ctx, roomName, users); err != nil {
		return nil, err
	}

	controlled, err := d.ControlledByMods(ctx, roomName)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Users:            users,
		ControlledByMods: controlled,
		Banned:           banned,
		Muted:            muted,
		IsMuted:          models.ContainsID(muted, participant.ID),
	}, nil
}

// Leave removes the participant bound to the given connection ID and returns
// the remaining participant list. A room with no stored participant list
// yields a nil list and no error.
func (d *Directory) Leave(ctx context.Context, roomName, connID string) ([]models.Participant, error) {
	users, found, err := d.Participants(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	remaining := make([]models.Participant, 0, len(users))
	for _, u := range users {
		if u.SID != connID {
			remaining = append(remaining, u)
		}
	}

	if err := d.SetParticipants(ctx, roomName, remaining); err != nil {
		return nil, err
	}
	return remaining, nil
}

// Purge deletes every stored key of a room. Called when the last connection
// leaves; the room ceases to exist and is recreated fresh on the next join.
func (d *Directory) Purge(ctx context.Context, roomName string) error {
	return d.store.DelPrefix(ctx, store.RoomPrefix(roomName))
}

// Participants returns the room's participant list. found is false when the
// room has no users key at all.
func (d *Directory) Participants(ctx context.Context, roomName string) ([]models.Participant, bool, error) {
	var users []models.Participant
	found, err := d.store.GetJSON(ctx, store.RoomKey(roomName, store.FieldUsers), &users)
	if err != nil {
		return nil, false, err
	}
	return users, found, nil
}

// SetParticipants replaces the room's participant list.
func (d *Directory) SetParticipants(ctx context.Context, roomName string, users []models.Participant) error {
	return d.store.SetJSON(ctx, store.RoomKey(roomName, store.FieldUsers), users, 0)
}

// Banned returns the room's ban list, empty when absent.
func (d *Directory) Banned(ctx context.Context, roomName string) ([]models.ReducedParticipant, error) {
	var banned []models.ReducedParticipant
	if _, err := d.store.GetJSON(ctx, store.RoomKey(roomName, store.FieldBannedParticipants), &banned); err != nil {
		return nil, err
	}
	if banned == nil {
		banned = []models.ReducedParticipant{}
	}
	return banned, nil
}

// SetBanned replaces the room's ban list.
func (d *Directory) SetBanned(ctx context.Context, roomName string, banned []models.ReducedParticipant) error {
	return d.store.SetJSON(ctx, store.RoomKey(roomName, store.FieldBannedParticipants), banned, 0)
}

// Muted returns the room's mute list, empty when absent.
func (d *Directory) Muted(ctx context.Context, roomName string) ([]models.ReducedParticipant, error) {
	var muted []models.ReducedParticipant
	if _, err := d.store.GetJSON(ctx, store.RoomKey(roomName, store.FieldMutedParticipants), &muted); err != nil {
		return nil, err
	}
	if muted == nil {
		muted = []models.ReducedParticipant{}
	}
	return muted, nil
}

// SetMuted replaces the room's mute list.
func (d *Directory) SetMuted(ctx context.Context, roomName string, muted []models.ReducedParticipant) error {
	return d.store.SetJSON(ctx, store.RoomKey(roomName, store.FieldMutedParticipants), muted, 0)
}

// ControlledByMods returns the room's moderator-only-control flag.
func (d *Directory) ControlledByMods(ctx context.Context, roomName string) (bool, error) {
	var controlled bool
	if _, err := d.store.GetJSON(ctx, store.RoomKey(roomName, store.FieldControlledByMods), &controlled); err != nil {
		return false, err
	}
	return controlled, nil
}

// SetControlMode sets the room's moderator-only-control flag.
func (d *Directory) SetControlMode(ctx context.Context, roomName string, enabled bool) error {
	return d.store.SetJSON(ctx, store.RoomKey(roomName, store.FieldControlledByMods), enabled, 0)
}

// Binding returns the session binding of a connection, or nil when absent.
func (d *Directory) Binding(ctx context.Context, connID string) (*models.SessionBinding, error) {
	var binding models.SessionBinding
	found, err := d.store.GetJSON(ctx, store.SIDKey(connID), &binding)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &binding, nil
}

// PutBinding persists the session binding of a connection.
func (d *Directory) PutBinding(ctx context.Context, connID string, binding models.SessionBinding) error {
	return d.store.SetJSON(ctx, store.SIDKey(connID), binding, 0)
}

// DeleteBinding removes the session binding of a connection.
func (d *Directory) DeleteBinding(ctx context.Context, connID string) error {
	return d.store.Del(ctx, store.SIDKey(connID))
}
