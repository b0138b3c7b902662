package server

import (
	"encoding/json"
	"errors"
	"net/http"

	jsonwriter "github.com/bndy-dev/bndy-portal/internal/json"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"github.com/bndy-dev/bndy-portal/internal/storage"
)

// ProfileHandler serves the signed-in user's profile. It sits behind the
// session auth middleware, which puts the verified claims in the context.
type ProfileHandler struct {
	store storage.Storage
}

// NewProfileHandler creates a profile handler
func NewProfileHandler(store storage.Storage) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// GetProfile handles GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		jsonwriter.WriteUnauthorized(w, "No session cookie found")
		return
	}

	profile, err := h.store.GetUser(r.Context(), claims.UID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			jsonwriter.WriteNotFound(w, "Profile not found")
			return
		}
		log.LogErrorWithFields("profile", "failed to load profile", map[string]any{
			"uid":   claims.UID,
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w)
		return
	}

	jsonwriter.Write(w, profile)
}

// UpdateProfile handles PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		jsonwriter.WriteUnauthorized(w, "No session cookie found")
		return
	}

	var update storage.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid profile update")
		return
	}

	profile, err := h.store.UpdateProfile(r.Context(), claims.UID, update)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			jsonwriter.WriteNotFound(w, "Profile not found")
			return
		}
		log.LogErrorWithFields("profile", "failed to update profile", map[string]any{
			"uid":   claims.UID,
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w)
		return
	}

	log.LogInfoWithFields("profile", "profile updated", map[string]any{
		"uid": claims.UID,
	})
	jsonwriter.Write(w, profile)
}
