package server

import (
	"encoding/json"
	"errors"

	"watchparty/internal/identity"
	"watchparty/internal/middleware"
	"watchparty/internal/models"
	"watchparty/internal/room"
)

type loginResponse struct {
	Success            bool                        `json:"success"`
	Users              []models.Participant        `json:"users"`
	ControlledByMods   bool                        `json:"controlledByMods"`
	BannedParticipants []models.ReducedParticipant `json:"bannedParticipants"`
	MutedParticipants  []models.ReducedParticipant `json:"mutedParticipants"`
	IsMuted            bool                        `json:"isMuted"`
}

// handleLogin resolves the caller's identity, admits them to the room and
// acknowledges with the full room snapshot. Every rejection is surfaced
// through the acknowledgement; nothing about the room changes on failure.
func (s *Server) handleLogin(ec *eventContext) error {
	var p LoginPayload
	if err := json.Unmarshal(ec.data, &p); err != nil {
		ec.replyError("Invalid login data")
		return nil
	}
	if p.Author == "" {
		// Browser clients send the token in the upgrade request instead.
		p.Author = ec.authToken
	}
	if err := p.Validate(); err != nil {
		ec.replyError(err.Error())
		return nil
	}

	user, err := s.identity.Lookup(ec.ctx, p.Author)
	if err != nil {
		if !errors.Is(err, identity.ErrNoUser) {
			middleware.Logger.ErrorContext(ec.ctx, "identity lookup failed", "error", err)
		}
		ec.replyError("Could not retrieve user data")
		return nil
	}

	participant := models.Participant{
		ID:       user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
		SID:      ec.conn.ID(),
	}

	snap, err := s.rooms.Join(ec.ctx, p.Room, p.Password, p.Anime, participant)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrAlreadyInRoom),
			errors.Is(err, room.ErrIncorrectPassword),
			errors.Is(err, room.ErrBanned),
			errors.Is(err, room.ErrAnimeMismatch):
			ec.replyError(err.Error())
			return nil
		default:
			return err
		}
	}

	ec.conn.Join(p.Room)
	if err := s.rooms.PutBinding(ec.ctx, ec.conn.ID(), models.SessionBinding{
		Room:   p.Room,
		UserID: participant.ID,
	}); err != nil {
		return err
	}

	if snap.Created {
		s.notifier.Send(p.Room, participant.Username+" created the room.")
	} else {
		s.broadcast.ToRoomExcept(p.Room, ec.conn.ID(), EventUserJoined, map[string]any{
			"user": participant,
		})
		s.notifier.Send(p.Room, participant.Username+" joined the room.")
	}

	if ec.reply != nil {
		ec.reply(loginResponse{
			Success:            true,
			Users:              snap.Users,
			ControlledByMods:   snap.ControlledByMods,
			BannedParticipants: snap.Banned,
			MutedParticipants:  snap.Muted,
			IsMuted:            snap.IsMuted,
		})
	}
	return nil
}

// replyError acknowledges with an error message when the client asked for an
// acknowledgement, and is a no-op otherwise.
func (ec *eventContext) replyError(msg string) {
	if ec.reply != nil {
		ec.reply(errorReply{Error: msg})
	}
}
