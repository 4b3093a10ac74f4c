package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-market-notify/internal/config"
	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/transport/http/handler"
	appmiddleware "github.com/go-market-notify/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Verifier)

	// 5 requests/second, burst of 10, for endpoints clients call on every push.
	pushRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Health)
	notifH := handler.NewNotificationHandler(deps.Notifications)
	streamH := handler.NewStreamHandler(deps.Events, cfg.AllowedOrigins)
	eventH := handler.NewEventHandler(deps.Dispatcher)
	deviceH := handler.NewDeviceHandler(deps.Devices)
	adminH := handler.NewAdminHandler(deps.Preferences, deps.Assignments, deps.Users, deps.Templates)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Delete("/notifications", notifH.Clear)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllRead)
			r.Get("/notifications/stream", streamH.Stream)
			r.With(pushRL.Limit).Post("/notifications/push", notifH.Receive)
			r.Post("/notifications/sent", notifH.LogSent)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}", notifH.UpdateStatus)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.Post("/events", eventH.Publish)

			r.Get("/devices", deviceH.List)
			r.Put("/devices", deviceH.Register)
			r.Get("/devices/{id}", deviceH.Get)
			r.Delete("/devices/{id}", deviceH.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/preferences", adminH.ListPreferences)
				r.Put("/preferences", adminH.SetPreference)
				r.Put("/delivery-assignments", adminH.PutAssignment)
				r.Delete("/delivery-assignments/{seller}/{agent}", adminH.DeleteAssignment)
				r.Put("/users", adminH.PutUser)
				r.Post("/templates/reload", adminH.ReloadTemplates)
			})
		})
	})

	return r
}
