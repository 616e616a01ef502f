// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-booking/internal/config"
	"github.com/iliyamo/event-seat-booking/internal/handler"
	"github.com/iliyamo/event-seat-booking/internal/middleware"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// Deps carries what the routes need.  Events is nil when the seat ledger
// is served by a remote event service.  Redis may be nil, which disables
// rate limiting and response caching.
type Deps struct {
	Bookings    *handler.BookingHandler
	Events      *handler.EventHandler
	Verifier    middleware.Verifier
	InternalKey string
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	Cache       config.CacheConfig
	Gatherer    prometheus.Gatherer
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Gatherer != nil {
		e.GET("/metrics", handler.Metrics(d.Gatherer))
	}
}

// RegisterEvents registers the local seat ledger.  The public snapshot is
// cached in Redis; the write endpoints are internal.
func RegisterEvents(e *echo.Echo, d Deps) {
	if d.Events == nil {
		return
	}
	e.GET("/v1/events/:id", d.Events.Get, middleware.ResponseCache(d.Cache, d.Redis))

	internal := middleware.RequireInternalKey(d.InternalKey)
	e.PATCH("/v1/events/:id/seats", d.Events.AdjustSeats, internal)
	e.POST("/v1/internal/events", d.Events.Define, internal)
}

// RegisterBookings registers the booking routes.  Customer routes require
// a verified bearer token and are rate limited per user.
func RegisterBookings(e *echo.Echo, d Deps) {
	h := d.Bookings
	internal := middleware.RequireInternalKey(d.InternalKey)

	// service-to-service, called by the event-management collaborator
	e.PATCH("/v1/bookings/event/:eventId/cancel-all", h.CancelAllForEvent, internal)
	e.POST("/v1/internal/events/:id/promote-waitlist", h.PromoteWaitlist, internal)

	g := e.Group("/v1/bookings",
		middleware.Authenticate(d.Verifier),
		middleware.RateLimit(d.RateLimit, d.Redis),
	)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/ticket", h.Ticket)
	g.PATCH("/:id/cancel", h.Cancel)
	g.GET("/event/:eventId/me", h.ActiveForEvent)

	admin := e.Group("/v1/admin",
		middleware.Authenticate(d.Verifier),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/events/:id/promote-waitlist", h.PromoteWaitlist)
}

// Register installs every route group.
func Register(e *echo.Echo, d Deps) {
	if d.InternalKey == "" {
		logrus.Warn("INTERNAL_API_KEY is not set, internal seat and booking routes accept unauthenticated calls")
	}
	RegisterRoutes(e, d)
	RegisterEvents(e, d)
	RegisterBookings(e, d)
}
