package handler

import (
	"net/http"
	"strconv"

	"github.com/go-market-notify/internal/application/notification"
	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/transport/http/middleware"
)

const defaultListLimit = 50

// NotificationHandler serves the caller's inbox in the local notification log.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// owner is the inbox of the authenticated caller.
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}

// List accepts ?type=sent|received|all and ?limit=N (0 for no limit).
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := h.svc.List(r.Context(), user, q.Get("type"), limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListEnvelope[domain.NotificationRecord]{Count: len(records), Data: records})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateStatus only accepts "read"; records never go back to unread.
func (h *NotificationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Status domain.RecordStatus `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Status != domain.StatusRead {
		writeError(w, http.StatusConflict, domain.ErrInvalidTransition.Error())
		return
	}
	if err := h.svc.MarkRead(r.Context(), user, id); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "notification updated"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkAllRead(r.Context(), user)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), user, id); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "notification deleted"})
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	if err := h.svc.Clear(r.Context(), user); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "notifications cleared"})
}

// Receive stores an incoming push. A duplicate message id answers 200 with the existing id.
func (h *NotificationHandler) Receive(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	var msg domain.PushMessage
	if !decodeBody(w, r, &msg) {
		return
	}
	id, inserted, err := h.svc.Receive(r.Context(), user, msg)
	if err != nil {
		httpError(w, err)
		return
	}
	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{"id": id, "inserted": inserted})
}

func (h *NotificationHandler) LogSent(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	var in domain.SentInput
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := h.svc.LogSent(r.Context(), user, in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
