package http

import (
	"github.com/go-market-notify/internal/application/device"
	"github.com/go-market-notify/internal/application/notification"
	"github.com/go-market-notify/internal/transport/http/handler"
	"github.com/go-market-notify/internal/transport/http/middleware"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Notifications notification.Service
	Devices       device.Service
	Dispatcher    handler.Dispatcher
	Preferences   handler.PreferenceService
	Assignments   handler.AssignmentStore
	Users         handler.UserStore
	Templates     handler.TemplateLoader
	Events        handler.Subscriber
	Verifier      middleware.TokenVerifier
	// Health maps a backend name to its readiness check.
	Health map[string]handler.Pinger
}
