package server

import (
	"context"
	"encoding/json"
	"fmt"

	"watchparty/internal/hub"
	"watchparty/internal/middleware"
)

// Inbound event names.
const (
	EventLogin           = "login"
	EventMessage         = "message"
	EventBan             = "ban"
	EventKick            = "kick"
	EventMute            = "mute"
	EventMod             = "mod"
	EventModControl      = "modControl"
	EventPlayerState     = "playerState"
	EventPlayerTimestamp = "playerTimestamp"
)

// Outbound-only event names.
const (
	EventUserJoined    = "userJoined"
	EventParticipants  = "participants"
	EventSystemMessage = "systemMessage"
)

// eventContext carries everything a handler needs for one inbound event.
// reply is nil unless the client asked for an acknowledgement.
type eventContext struct {
	ctx       context.Context
	conn      Conn
	authToken string
	data      json.RawMessage
	reply     func(payload any)
}

type eventHandler func(ec *eventContext) error

type errorReply struct {
	Error string `json:"error"`
}

func (s *Server) registerHandlers() {
	s.handlers = map[string]eventHandler{
		EventLogin:           s.handleLogin,
		EventMessage:         s.handleMessage,
		EventBan:             s.handleBan,
		EventKick:            s.handleKick,
		EventMute:            s.handleMute,
		EventMod:             s.handleMod,
		EventModControl:      s.handleModControl,
		EventPlayerState:     s.handlePlayerState,
		EventPlayerTimestamp: s.handlePlayerTimestamp,
	}
}

// dispatch decodes one inbound frame and routes it to its handler. A handler
// error or panic never takes the connection down; it is logged and, when the
// client asked for an acknowledgement, answered with a generic error reply.
func (s *Server) dispatch(c Conn, authToken string, frame []byte) {
	var env hub.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		middleware.Logger.Warn("dropping malformed frame", "conn_id", c.ID(), "error", err)
		middleware.EventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return
	}

	handler, ok := s.handlers[env.Event]
	if !ok {
		middleware.Logger.Warn("dropping unknown event", "conn_id", c.ID(), "event", env.Event)
		middleware.EventsTotal.WithLabelValues(env.Event, "unknown").Inc()
		return
	}

	var reply func(payload any)
	if env.ID != nil {
		id := *env.ID
		event := env.Event
		reply = func(payload any) {
			c.Reply(id, event, payload)
		}
	}

	ec := &eventContext{
		ctx:       middleware.WithConnID(context.Background(), c.ID()),
		conn:      c,
		authToken: authToken,
		data:      env.Data,
		reply:     reply,
	}

	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("handler panic", "conn_id", c.ID(), "event", env.Event, "panic", fmt.Sprint(r))
			middleware.EventsTotal.WithLabelValues(env.Event, "panic").Inc()
			if reply != nil {
				reply(errorReply{Error: "An unexpected error occurred"})
			}
		}
	}()

	if err := handler(ec); err != nil {
		middleware.Logger.Error("handler failed", "conn_id", c.ID(), "event", env.Event, "error", err)
		middleware.EventsTotal.WithLabelValues(env.Event, "error").Inc()
		if reply != nil {
			reply(errorReply{Error: "An unexpected error occurred"})
		}
		return
	}
	middleware.EventsTotal.WithLabelValues(env.Event, "ok").Inc()
}
