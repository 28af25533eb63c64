package server

import (
	"encoding/json"

	"watchparty/internal/models"
)

// handleMessage relays a chat message to the sender's room. Messages from
// muted participants and from connections without a room are dropped.
func (s *Server) handleMessage(ec *eventContext) error {
	var p MessagePayload
	if err := json.Unmarshal(ec.data, &p); err != nil || p.Validate() != nil {
		return nil
	}

	binding, err := s.rooms.Binding(ec.ctx, ec.conn.ID())
	if err != nil {
		return err
	}
	if binding == nil {
		return nil
	}

	users, _, err := s.rooms.Participants(ec.ctx, binding.Room)
	if err != nil {
		return err
	}
	sender := models.FindBySID(users, ec.conn.ID())
	if sender == nil {
		return nil
	}

	muted, err := s.rooms.Muted(ec.ctx, binding.Room)
	if err != nil {
		return err
	}
	if models.ContainsID(muted, sender.ID) {
		return nil
	}

	s.broadcast.ToRoom(binding.Room, EventMessage, map[string]any{
		"content": p.Message,
		"author":  sender.Reduce(),
	})
	return nil
}
