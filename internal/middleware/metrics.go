package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSockets is the gauge of currently open websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watchparty_websocket_connections_active",
		Help: "Number of currently active WebSocket connections",
	})

	// EventsTotal counts inbound client events by name and outcome.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchparty_events_total",
		Help: "Total inbound client events by name and outcome",
	}, []string{"event", "outcome"})

	// RedisErrors counts Redis command errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchparty_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// BackpressureDrops counts messages dropped because a client send buffer was full or closed.
	BackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchparty_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// InitMetrics creates the Prometheus middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware returns the Fiber handler that records request metrics.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
