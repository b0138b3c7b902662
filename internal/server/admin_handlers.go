package server

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/bndy-dev/bndy-portal/internal/config"
	jsonwriter "github.com/bndy-dev/bndy-portal/internal/json"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"github.com/bndy-dev/bndy-portal/internal/storage"
)

// AdminHandler serves the operator surface behind HTTP basic auth
type AdminHandler struct {
	cfg   config.AdminConfig
	store storage.Storage
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(cfg config.AdminConfig, store storage.Storage) *AdminHandler {
	return &AdminHandler{cfg: cfg, store: store}
}

// RequireBasicAuth wraps a handler with basic auth against the configured
// admin credentials
func (h *AdminHandler) RequireBasicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="bndy-portal"`)
			jsonwriter.WriteUnauthorized(w, "Unauthorized")
			return
		}

		usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(h.cfg.Username)) == 1
		passwordErr := bcrypt.CompareHashAndPassword([]byte(string(h.cfg.PasswordHash)), []byte(password))
		if !usernameMatch || passwordErr != nil {
			log.LogWarnWithFields("admin", "basic auth failed", map[string]any{
				"username": username,
			})
			w.Header().Set("WWW-Authenticate", `Basic realm="bndy-portal"`)
			jsonwriter.WriteUnauthorized(w, "Unauthorized")
			return
		}

		next(w, r)
	}
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.GetAllUsers(r.Context())
	if err != nil {
		log.LogErrorWithFields("admin", "failed to list users", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w)
		return
	}

	jsonwriter.Write(w, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// DeleteUser handles DELETE /api/admin/users/{uid}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if uid == "" {
		jsonwriter.WriteBadRequest(w, "Missing uid")
		return
	}

	if err := h.store.DeleteUser(r.Context(), uid); err != nil {
		log.LogErrorWithFields("admin", "failed to delete user", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w)
		return
	}

	log.LogInfoWithFields("admin", "user deleted", map[string]any{
		"uid": uid,
	})
	jsonwriter.Write(w, map[string]bool{"success": true})
}
