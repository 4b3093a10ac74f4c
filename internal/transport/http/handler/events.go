package handler

import (
	"context"
	"net/http"

	"github.com/go-market-notify/internal/application/dispatch"
	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/pkg/validate"
	"github.com/go-market-notify/internal/transport/http/middleware"
)

// Dispatcher starts the fan-out of one event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.DomainEvent) *dispatch.Run
}

// EventHandler accepts domain events from marketplace clients.
type EventHandler struct {
	dispatcher Dispatcher
}

func NewEventHandler(d Dispatcher) *EventHandler { return &EventHandler{dispatcher: d} }

// Publish answers 202 as soon as the branches are started. The caller is the acting user
// unless it is an admin publishing on someone's behalf.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var ev domain.DomainEvent
	if !decodeBody(w, r, &ev) {
		return
	}
	if ev.ActingUserID == "" {
		ev.ActingUserID = claims.UserID
		if ev.ActingUserName == "" {
			ev.ActingUserName = claims.Username
		}
	}
	if ev.ActingUserID != claims.UserID && claims.Role != string(domain.RoleAdmin) {
		writeError(w, http.StatusForbidden, "cannot publish events for another user")
		return
	}
	if err := validate.Struct(ev); err != nil {
		httpError(w, err)
		return
	}
	if err := ev.Check(); err != nil {
		httpError(w, err)
		return
	}

	run := h.dispatcher.Dispatch(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, run)
}
