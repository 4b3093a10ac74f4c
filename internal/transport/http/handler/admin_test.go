package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-market-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrefs struct {
	saved []domain.Preference
	err   error
}

func (f *fakePrefs) List(context.Context) ([]domain.Preference, error) { return f.saved, nil }
func (f *fakePrefs) Set(_ context.Context, p domain.Preference) (*domain.Preference, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, p)
	return &p, nil
}

type fakeAssignments struct {
	put     []domain.DeliveryAssignment
	deleted []string
}

func (f *fakeAssignments) Put(_ context.Context, a *domain.DeliveryAssignment) error {
	f.put = append(f.put, *a)
	return nil
}

func (f *fakeAssignments) Delete(_ context.Context, sellerID, agentID string) error {
	f.deleted = append(f.deleted, sellerID+"/"+agentID)
	return nil
}

type fakeUsers struct{ put []domain.User }

func (f *fakeUsers) Put(_ context.Context, u *domain.User) error {
	f.put = append(f.put, *u)
	return nil
}

type fakeTemplates struct{ err error }

func (f fakeTemplates) LoadMessages(context.Context) error { return f.err }
func (f fakeTemplates) Locales() []string                  { return []string{"en", "es"} }

func TestSetPreference(t *testing.T) {
	prefs := &fakePrefs{}
	h := NewAdminHandler(prefs, &fakeAssignments{}, &fakeUsers{}, fakeTemplates{})

	body := domain.Preference{EventKind: domain.KindPurchase, Role: domain.RoleSeller, Enabled: false}
	rr := httptest.NewRecorder()
	h.SetPreference(rr, httptest.NewRequest(http.MethodPut, "/v1/preferences", jsonBody(t, body)))

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, prefs.saved, 1)
	assert.Equal(t, domain.RoleSeller, prefs.saved[0].Role)
}

func TestSetPreference_BadRequest(t *testing.T) {
	h := NewAdminHandler(&fakePrefs{err: domain.ErrBadRequest}, &fakeAssignments{}, &fakeUsers{}, fakeTemplates{})
	rr := httptest.NewRecorder()
	h.SetPreference(rr, httptest.NewRequest(http.MethodPut, "/v1/preferences", jsonBody(t, domain.Preference{})))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPutAssignment(t *testing.T) {
	store := &fakeAssignments{}
	h := NewAdminHandler(&fakePrefs{}, store, &fakeUsers{}, fakeTemplates{})

	rr := httptest.NewRecorder()
	h.PutAssignment(rr, httptest.NewRequest(http.MethodPut, "/v1/delivery-assignments",
		jsonBody(t, domain.DeliveryAssignment{SellerID: "s1", AgentID: "d1", Active: true})))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, store.put, 1)
	assert.False(t, store.put[0].UpdatedAt.IsZero())

	rr = httptest.NewRecorder()
	h.PutAssignment(rr, httptest.NewRequest(http.MethodPut, "/v1/delivery-assignments",
		jsonBody(t, domain.DeliveryAssignment{SellerID: "s1"})))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestReloadTemplates(t *testing.T) {
	h := NewAdminHandler(&fakePrefs{}, &fakeAssignments{}, &fakeUsers{}, fakeTemplates{})
	rr := httptest.NewRecorder()
	h.ReloadTemplates(rr, httptest.NewRequest(http.MethodPost, "/v1/templates/reload", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string][]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, []string{"en", "es"}, resp["locales"])

	h = NewAdminHandler(&fakePrefs{}, &fakeAssignments{}, &fakeUsers{}, fakeTemplates{err: errors.New("bucket gone")})
	rr = httptest.NewRecorder()
	h.ReloadTemplates(rr, httptest.NewRequest(http.MethodPost, "/v1/templates/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestDeleteAssignment(t *testing.T) {
	store := &fakeAssignments{}
	h := NewAdminHandler(&fakePrefs{}, store, &fakeUsers{}, fakeTemplates{})

	r := httptest.NewRequest(http.MethodDelete, "/v1/delivery-assignments/s1/d1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("seller", "s1")
	rctx.URLParams.Add("agent", "d1")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	h.DeleteAssignment(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"s1/d1"}, store.deleted)
}

func TestPutUser(t *testing.T) {
	users := &fakeUsers{}
	h := NewAdminHandler(&fakePrefs{}, &fakeAssignments{}, users, fakeTemplates{})

	rr := httptest.NewRecorder()
	h.PutUser(rr, httptest.NewRequest(http.MethodPut, "/v1/users",
		jsonBody(t, map[string]string{"id": "u1", "username": "ana", "role": "seller"})))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, users.put, 1)
	assert.True(t, users.put[0].Enable)
	assert.Equal(t, domain.RoleSeller, users.put[0].Role)

	rr = httptest.NewRecorder()
	h.PutUser(rr, httptest.NewRequest(http.MethodPut, "/v1/users",
		jsonBody(t, map[string]string{"id": "u2", "username": "bo", "role": "guest"})))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Len(t, users.put, 1)
}
