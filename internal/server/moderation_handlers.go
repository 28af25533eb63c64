package server

import (
	"encoding/json"

	"watchparty/internal/models"
	"watchparty/internal/room"
)

// session resolves the caller's room and participant record. ok is false when
// the connection has no room binding or is no longer in the participant list;
// such events are silently dropped.
func (s *Server) session(ec *eventContext) (roomName string, users []models.Participant, caller *models.Participant, ok bool, err error) {
	binding, err := s.rooms.Binding(ec.ctx, ec.conn.ID())
	if err != nil || binding == nil {
		return "", nil, nil, false, err
	}
	users, _, err = s.rooms.Participants(ec.ctx, binding.Room)
	if err != nil {
		return "", nil, nil, false, err
	}
	caller = models.FindBySID(users, ec.conn.ID())
	if caller == nil {
		return "", nil, nil, false, nil
	}
	return binding.Room, users, caller, true, nil
}

// handleBan toggles the target's ban. Banning requires moderation authority
// over the target and force-disconnects them; unbanning only requires the
// caller to be a moderator, since the target is no longer in the room.
func (s *Server) handleBan(ec *eventContext) error {
	var p TargetPayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	roomName, users, caller, ok, err := s.session(ec)
	if err != nil || !ok {
		return err
	}

	banned, err := s.rooms.Banned(ec.ctx, roomName)
	if err != nil {
		return err
	}

	if existing := models.FindReduced(banned, p.Target); existing != nil {
		if !caller.Moderator {
			return nil
		}
		remaining := make([]models.ReducedParticipant, 0, len(banned))
		for _, b := range banned {
			if b.ID != p.Target {
				remaining = append(remaining, b)
			}
		}
		if err := s.rooms.SetBanned(ec.ctx, roomName, remaining); err != nil {
			return err
		}
		s.notifier.Send(roomName, caller.Username+" has removed the ban for "+existing.Username+".")
		s.broadcast.ToRoom(roomName, EventBan, map[string]any{"bannedParticipants": remaining})
		return nil
	}

	target := models.FindByID(users, p.Target)
	if !room.CanModerate(caller, target) {
		return nil
	}

	banned = append(banned, target.Reduce())
	if err := s.rooms.SetBanned(ec.ctx, roomName, banned); err != nil {
		return err
	}

	s.broadcast.Disconnect(target.SID)
	s.notifier.Send(roomName, caller.Username+" has banned "+target.Username+".")
	s.broadcast.ToRoom(roomName, EventBan, map[string]any{"bannedParticipants": banned})
	return nil
}

// handleKick force-disconnects the target without changing any room state.
func (s *Server) handleKick(ec *eventContext) error {
	var p TargetPayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	roomName, users, caller, ok, err := s.session(ec)
	if err != nil || !ok {
		return err
	}

	target := models.FindByID(users, p.Target)
	if !room.CanModerate(caller, target) {
		return nil
	}

	s.broadcast.Disconnect(target.SID)
	s.notifier.Send(roomName, caller.Username+" has kicked "+target.Username+".")
	return nil
}

// handleMute toggles the target's presence on the mute list.
func (s *Server) handleMute(ec *eventContext) error {
	var p TargetPayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	roomName, users, caller, ok, err := s.session(ec)
	if err != nil || !ok {
		return err
	}

	target := models.FindByID(users, p.Target)
	if !room.CanModerate(caller, target) {
		return nil
	}

	muted, err := s.rooms.Muted(ec.ctx, roomName)
	if err != nil {
		return err
	}

	var verb string
	if models.ContainsID(muted, target.ID) {
		remaining := make([]models.ReducedParticipant, 0, len(muted))
		for _, m := range muted {
			if m.ID != target.ID {
				remaining = append(remaining, m)
			}
		}
		muted = remaining
		verb = "unmuted"
	} else {
		muted = append(muted, target.Reduce())
		verb = "muted"
	}

	if err := s.rooms.SetMuted(ec.ctx, roomName, muted); err != nil {
		return err
	}

	s.notifier.Send(roomName, caller.Username+" has "+verb+" "+target.Username+".")
	s.broadcast.ToRoom(roomName, EventMute, map[string]any{"mutedParticipants": muted})
	return nil
}

// handleMod toggles the target's moderator flag. Only the room owner may
// grant or revoke moderator status.
func (s *Server) handleMod(ec *eventContext) error {
	var p TargetPayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	roomName, users, caller, ok, err := s.session(ec)
	if err != nil || !ok {
		return err
	}
	if !caller.Owner {
		return nil
	}

	var target *models.Participant
	for i := range users {
		if users[i].ID == p.Target {
			target = &users[i]
			break
		}
	}
	if target == nil || target.ID == caller.ID {
		return nil
	}

	target.Moderator = !target.Moderator
	if err := s.rooms.SetParticipants(ec.ctx, roomName, users); err != nil {
		return err
	}

	if target.Moderator {
		s.notifier.Send(roomName, caller.Username+" has made "+target.Username+" a moderator.")
	} else {
		s.notifier.Send(roomName, caller.Username+" has removed moderator status from "+target.Username+".")
	}
	s.broadcast.ToRoom(roomName, EventParticipants, map[string]any{"participants": users})
	return nil
}
