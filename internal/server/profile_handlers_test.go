package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bndy-dev/bndy-portal/internal/identity"
	"github.com/bndy-dev/bndy-portal/internal/storage"
)

func requestWithClaims(r *http.Request, uid string) *http.Request {
	return r.WithContext(withClaims(r.Context(), &identity.Claims{UID: uid}))
}

func TestGetProfile(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.UpsertUser(context.Background(), "user-1", "a@b.test", "Alice"))
	handler := NewProfileHandler(store)

	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "user-1")
	rec := httptest.NewRecorder()
	handler.GetProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var profile storage.UserProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "user-1", profile.UID)
	assert.Equal(t, "a@b.test", profile.Email)
}

func TestGetProfileNotFound(t *testing.T) {
	handler := NewProfileHandler(storage.NewMemoryStorage())

	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "missing")
	rec := httptest.NewRecorder()
	handler.GetProfile(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProfileNoClaims(t *testing.T) {
	handler := NewProfileHandler(storage.NewMemoryStorage())

	rec := httptest.NewRecorder()
	handler.GetProfile(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.UpsertUser(context.Background(), "user-1", "a@b.test", "Alice"))
	handler := NewProfileHandler(store)

	body := `{"displayName":"DJ Alice","town":"Stoke","instruments":["guitar"]}`
	req := requestWithClaims(httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	handler.UpdateProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var profile storage.UserProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "DJ Alice", profile.DisplayName)
	assert.Equal(t, "Stoke", profile.Town)
	assert.Equal(t, []string{"guitar"}, profile.Instruments)
}

func TestUpdateProfileBadBody(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.UpsertUser(context.Background(), "user-1", "a@b.test", "Alice"))
	handler := NewProfileHandler(store)

	req := requestWithClaims(httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(`{bad`)), "user-1")
	rec := httptest.NewRecorder()
	handler.UpdateProfile(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
