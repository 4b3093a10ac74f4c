package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/pkg/validate"
)

type PreferenceService interface {
	List(ctx context.Context) ([]domain.Preference, error)
	Set(ctx context.Context, p domain.Preference) (*domain.Preference, error)
}

type AssignmentStore interface {
	Put(ctx context.Context, a *domain.DeliveryAssignment) error
	Delete(ctx context.Context, sellerID, agentID string) error
}

// UserStore receives the role directory synced from the marketplace.
type UserStore interface {
	Put(ctx context.Context, u *domain.User) error
}

type TemplateLoader interface {
	LoadMessages(ctx context.Context) error
	Locales() []string
}

// AdminHandler manages notification settings shared by every user.
type AdminHandler struct {
	prefs       PreferenceService
	assignments AssignmentStore
	users       UserStore
	templates   TemplateLoader
}

func NewAdminHandler(prefs PreferenceService, assignments AssignmentStore, users UserStore, templates TemplateLoader) *AdminHandler {
	return &AdminHandler{prefs: prefs, assignments: assignments, users: users, templates: templates}
}

func (h *AdminHandler) ListPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.List(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListEnvelope[domain.Preference]{Count: len(prefs), Data: prefs})
}

func (h *AdminHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	var p domain.Preference
	if !decodeBody(w, r, &p) {
		return
	}
	saved, err := h.prefs.Set(r.Context(), p)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// PutAssignment creates or replaces a seller/agent link. Send active=false to suspend it.
func (h *AdminHandler) PutAssignment(w http.ResponseWriter, r *http.Request) {
	var a domain.DeliveryAssignment
	if !decodeBody(w, r, &a) {
		return
	}
	if err := validate.Struct(a); err != nil {
		httpError(w, err)
		return
	}
	a.UpdatedAt = time.Now().UTC()
	if err := h.assignments.Put(r.Context(), &a); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AdminHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.assignments.Delete(r.Context(), chi.URLParam(r, "seller"), chi.URLParam(r, "agent")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "assignment deleted"})
}

// PutUser upserts one marketplace account into the role directory.
func (h *AdminHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string      `json:"id" validate:"required"`
		Username string      `json:"username" validate:"required"`
		Role     domain.Role `json:"role" validate:"required,oneof=admin buyer seller delivery"`
		Locale   string      `json:"locale"`
		Enable   *bool       `json:"enable"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := validate.Struct(body); err != nil {
		httpError(w, err)
		return
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:    body.UserID,
		Username:  body.Username,
		Role:      body.Role,
		Locale:    body.Locale,
		Enable:    body.Enable == nil || *body.Enable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.users.Put(r.Context(), u); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) ReloadTemplates(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.LoadMessages(r.Context()); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"locales": h.templates.Locales()})
}
