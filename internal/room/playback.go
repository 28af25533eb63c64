package room

import (
	"context"

	"watchparty/internal/models"
)

// CanControlPlayback reports whether the connection may alter shared playback
// state in the room. With moderator-only control disabled anyone may; with it
// enabled only participants carrying the moderator flag may.
func (d *Directory) CanControlPlayback(ctx context.Context, roomName, connID string) (bool, error) {
	controlled, err := d.ControlledByMods(ctx, roomName)
	if err != nil {
		return false, err
	}
	if !controlled {
		return true, nil
	}

	users, _, err := d.Participants(ctx, roomName)
	if err != nil {
		return false, err
	}
	p := models.FindBySID(users, connID)
	return p != nil && p.Moderator, nil
}
