package server

import (
	"context"

	"watchparty/internal/middleware"
)

// handleDisconnect runs after the transport has already removed the
// connection from its rooms. It removes the participant from the stored
// room state and tears the room down when the last connection is gone.
func (s *Server) handleDisconnect(c Conn) {
	ctx := middleware.WithConnID(context.Background(), c.ID())

	binding, err := s.rooms.Binding(ctx, c.ID())
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "disconnect: binding lookup failed", "error", err)
		return
	}
	if binding == nil {
		return
	}

	remaining, err := s.rooms.Leave(ctx, binding.Room, c.ID())
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "disconnect: leave failed", "error", err)
		return
	}
	if remaining != nil {
		s.broadcast.ToRoom(binding.Room, EventParticipants, map[string]any{
			"participants": remaining,
		})
	}

	if s.broadcast.RoomSize(binding.Room) == 0 {
		if err := s.rooms.Purge(ctx, binding.Room); err != nil {
			middleware.Logger.ErrorContext(ctx, "disconnect: room purge failed", "error", err)
		}
		if err := s.rooms.DeleteBinding(ctx, c.ID()); err != nil {
			middleware.Logger.ErrorContext(ctx, "disconnect: binding delete failed", "error", err)
		}
	}
}
