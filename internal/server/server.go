// Package server wires the transport, session store, and room-state engine
// together and hosts the event handlers for the watch-together protocol.
package server

import (
	"context"
	"log"

	"watchparty/internal/cache"
	"watchparty/internal/config"
	"watchparty/internal/hub"
	"watchparty/internal/identity"
	"watchparty/internal/middleware"
	"watchparty/internal/room"
	"watchparty/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// Conn is the connection surface event handlers operate on: identity,
// transport-room membership, single-target send, and forced disconnect.
type Conn interface {
	ID() string
	Join(room string)
	Leave(room string)
	Send(event string, payload any)
	Reply(id uint64, event string, payload any)
	Close()
}

// Broadcaster is the room-scoped side of the transport.
type Broadcaster interface {
	ToRoom(room, event string, payload any)
	ToRoomExcept(room, exceptConnID, event string, payload any)
	RoomSize(room string) int
	Disconnect(connID string)
}

// IdentityResolver resolves a login token to a user identity.
type IdentityResolver interface {
	Lookup(ctx context.Context, token string) (*identity.User, error)
}

// Server holds all dependencies and provides the protocol handlers.
type Server struct {
	config         *config.Config
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	store          *store.SessionStore
	rooms          *room.Directory
	identity       IdentityResolver
	hub            *hub.Hub
	broadcast      Broadcaster
	notifier       *SystemNotifier
	handlers       map[string]eventHandler
}

// NewServer creates a server instance with all dependencies.
func NewServer(cfg *config.Config) (*Server, error) {
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, redisClient, identity.NewClient(cfg.APIURL)), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes Redis itself.
func NewServerWithDeps(cfg *config.Config, redisClient *redis.Client, resolver IdentityResolver) *Server {
	sessionStore := store.New(redisClient)
	h := hub.NewHub()

	server := &Server{
		config:         cfg,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("watchparty"),
		store:          sessionStore,
		rooms:          room.NewDirectory(sessionStore),
		identity:       resolver,
		hub:            h,
		broadcast:      h,
	}
	server.notifier = NewSystemNotifier(server.broadcast, cfg.BotName, cfg.BotAvatar)
	server.registerHandlers()

	return server
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(middleware.StructuredLogger())

	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", s.HealthCheck)
	app.Get("/health", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("authToken", c.Get(fiber.HeaderAuthorization))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", s.WebSocketHandler())
}

// HealthCheck is the fixed liveness endpoint.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("Watch Together Socket OK")
}

// WebSocketHandler accepts a websocket connection and runs its event loop
// until the connection drops.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		authToken, _ := conn.Locals("authToken").(string)

		client, err := s.hub.Register(conn)
		if err != nil {
			log.Printf("websocket register failed: %v", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		log.Printf("New connection: %s", client.ID())

		client.IncomingHandler = func(c *hub.Client, frame []byte) {
			s.dispatch(c, authToken, frame)
		}
		client.DisconnectHandler = func(c *hub.Client) {
			s.handleDisconnect(c)
		}

		// Write pump in its own goroutine; the read pump blocks here and
		// owns the disconnect sequence.
		go client.WritePump()
		client.ReadPump()
	})
}

// FlushSessionState deletes every room and session-binding key. Room state is
// meaningless across restarts, so the process starts from a clean keyspace.
func (s *Server) FlushSessionState(ctx context.Context) error {
	log.Println("Removing existing keys...")
	if err := s.store.DelPrefix(ctx, "room:*"); err != nil {
		return err
	}
	return s.store.DelPrefix(ctx, "sid:*")
}

// Shutdown closes the server's long-lived resources. The HTTP listener is
// owned and shut down by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down hub: %v", err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
