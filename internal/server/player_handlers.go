package server

import "encoding/json"

// handleModControl flips whether playback control is restricted to
// moderators. Moderator-only.
func (s *Server) handleModControl(ec *eventContext) error {
	var p ModControlPayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	roomName, _, caller, ok, err := s.session(ec)
	if err != nil || !ok {
		return err
	}
	if !caller.Moderator {
		return nil
	}

	enabled := *p.Enabled
	if err := s.rooms.SetControlMode(ec.ctx, roomName, enabled); err != nil {
		return err
	}

	if enabled {
		s.notifier.Send(roomName, caller.Username+" has enabled moderator-only control.")
	} else {
		s.notifier.Send(roomName, caller.Username+" has disabled moderator-only control.")
	}
	s.broadcast.ToRoom(roomName, EventModControl, map[string]any{"enabled": enabled})
	return nil
}

// handlePlayerState relays a play/pause transition to everyone else in the
// room, subject to the room's control mode.
func (s *Server) handlePlayerState(ec *eventContext) error {
	var p PlayerStatePayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	binding, err := s.rooms.Binding(ec.ctx, ec.conn.ID())
	if err != nil || binding == nil {
		return err
	}

	allowed, err := s.rooms.CanControlPlayback(ec.ctx, binding.Room, ec.conn.ID())
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	s.broadcast.ToRoomExcept(binding.Room, ec.conn.ID(), EventPlayerState, map[string]any{
		"playing": *p.Playing,
	})
	return nil
}

// handlePlayerTimestamp relays a seek position to everyone else in the room,
// subject to the room's control mode.
func (s *Server) handlePlayerTimestamp(ec *eventContext) error {
	var p PlayerTimestampPayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	binding, err := s.rooms.Binding(ec.ctx, ec.conn.ID())
	if err != nil || binding == nil {
		return err
	}

	allowed, err := s.rooms.CanControlPlayback(ec.ctx, binding.Room, ec.conn.ID())
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	s.broadcast.ToRoomExcept(binding.Room, ec.conn.ID(), EventPlayerTimestamp, map[string]any{
		"timestamp": *p.Timestamp,
	})
	return nil
}
