package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carsync/internal/cache"
	"carsync/internal/clients"
	"carsync/internal/handlers"
	"carsync/internal/handlers/api"
	"carsync/internal/router"
)

// Deps are the components the routes serve.
type Deps struct {
	Router   *router.Router
	Registry *cache.Registry
	Hub      *clients.Hub
	// Live is nil when the live channel is disabled.
	Live api.LiveSession
}

// RegisterRoutes registers all application routes. Event streams end when
// ctx is cancelled.
func (s *Server) RegisterRoutes(ctx context.Context, d Deps) {
	// Initialize handlers
	controlHandler := api.NewControlHandler(d.Router)
	pushHandler := api.NewPushHandler(d.Router)
	syncHandler := api.NewSyncHandler(d.Router)
	statusHandler := api.NewStatusHandler(d.Router, d.Registry, d.Hub, d.Live)
	eventsHandler := handlers.NewEventsHandler(ctx, d.Hub, 15*time.Second)
	interceptHandler := handlers.NewInterceptHandler(d.Router, s.Cfg.UpstreamURL)

	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Worker control surface
	worker := s.App.Group("/_carsync", controlLimiter(s.Cfg.RateLimitMax))
	worker.Get("/events", eventsHandler.Stream)
	worker.Get("/status", statusHandler.Status)
	worker.Post("/clients/:id/navigate", statusHandler.Navigate)
	worker.Post("/control", controlHandler.Handle)
	worker.Post("/push", pushHandler.Push)
	worker.Post("/notifications/click", pushHandler.Click)
	worker.Post("/sync", syncHandler.Handle)

	// Everything else goes through the cache router - must be last.
	s.App.All("/*", interceptHandler.Handle)
}
