package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bndy-dev/bndy-portal/internal/cookie"
	"github.com/bndy-dev/bndy-portal/internal/identity"
	jsonwriter "github.com/bndy-dev/bndy-portal/internal/json"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"github.com/bndy-dev/bndy-portal/internal/metrics"
	"github.com/bndy-dev/bndy-portal/internal/storage"
)

// SessionHandler serves the session exchange endpoint: POST mints a session
// cookie from an ID token, GET validates the current cookie, DELETE clears it.
type SessionHandler struct {
	provider identity.Provider
	store    storage.Storage
	recorder metrics.Recorder

	// defaultDomain is the configured cookie domain, used when the request
	// does not carry its own cookie options
	defaultDomain string
}

// NewSessionHandler creates a session handler
func NewSessionHandler(provider identity.Provider, store storage.Storage, recorder metrics.Recorder, defaultDomain string) *SessionHandler {
	return &SessionHandler{
		provider:      provider,
		store:         store,
		recorder:      recorder,
		defaultDomain: defaultDomain,
	}
}

type createSessionRequest struct {
	IDToken       string          `json:"idToken"`
	UID           string          `json:"uid"`
	CookieOptions *cookie.Options `json:"cookieOptions,omitempty"`
}

type sessionUserResponse struct {
	UID   *string `json:"uid"`
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

type validateSessionResponse struct {
	Valid bool                 `json:"valid"`
	User  *sessionUserResponse `json:"user,omitempty"`
	Error string               `json:"error,omitempty"`
}

// CreateSession handles POST requests. The credential presence check runs
// before any token verification so malformed requests never reach the
// identity provider.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recorder.RecordSessionCreateFailure("bad_request")
		jsonwriter.WriteBadRequest(w, "Missing idToken or uid")
		return
	}

	if req.IDToken == "" || req.UID == "" {
		h.recorder.RecordSessionCreateFailure("bad_request")
		jsonwriter.WriteBadRequest(w, "Missing idToken or uid")
		return
	}

	claims, err := h.provider.VerifyIDToken(r.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, identity.ErrTokenExpired) {
			h.recorder.RecordSessionCreateFailure("token_expired")
			jsonwriter.WriteUnauthorized(w, "ID token has expired")
			return
		}
		log.LogDebugWithFields("session", "ID token verification failed", map[string]any{
			"error": err.Error(),
		})
		h.recorder.RecordSessionCreateFailure("invalid_token")
		jsonwriter.WriteUnauthorized(w, "Invalid ID token")
		return
	}

	// The caller-supplied uid must match the token before a cookie is minted
	if claims.UID != req.UID {
		log.LogWarnWithFields("session", "UID mismatch on session creation", map[string]any{
			"tokenUID":  claims.UID,
			"clientUID": req.UID,
		})
		h.recorder.RecordSessionCreateFailure("uid_mismatch")
		jsonwriter.WriteUnauthorized(w, "Token UID does not match provided UID")
		return
	}

	sessionCookie, err := h.provider.MintSessionCookie(r.Context(), req.IDToken, cookie.SessionTTL)
	if err != nil {
		log.LogErrorWithFields("session", "failed to mint session cookie", map[string]any{
			"uid":   claims.UID,
			"error": err.Error(),
		})
		h.recorder.RecordSessionCreateFailure("mint_failed")
		jsonwriter.WriteInternalServerError(w)
		return
	}

	opts := cookie.Options{Domain: h.defaultDomain}
	if req.CookieOptions != nil {
		opts = *req.CookieOptions
	}
	cookie.SetSession(w, sessionCookie, opts)

	// Profile upsert is best effort and never blocks sign-in
	if err := h.store.UpsertUser(r.Context(), claims.UID, claims.Email, claims.Name); err != nil {
		log.LogWarnWithFields("session", "user upsert failed", map[string]any{
			"uid":   claims.UID,
			"error": err.Error(),
		})
	}

	h.recorder.RecordSessionCreated()
	log.LogInfoWithFields("session", "Session created", map[string]any{
		"uid": claims.UID,
	})

	jsonwriter.Write(w, map[string]bool{"success": true})
}

// ValidateSession handles GET requests. Responses always carry the same
// shape: valid plus either the user or an error message.
func (h *SessionHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	sessionValue, err := cookie.GetSession(r)
	if err != nil {
		h.recorder.RecordValidation("no_cookie")
		jsonwriter.WriteResponse(w, http.StatusUnauthorized, validateSessionResponse{
			Valid: false,
			Error: "No session cookie found",
		})
		return
	}

	claims, err := h.provider.VerifySessionCookie(r.Context(), sessionValue, true)
	if err != nil {
		log.LogDebugWithFields("session", "session validation failed", map[string]any{
			"error": err.Error(),
		})
		h.recorder.RecordValidation("invalid")
		jsonwriter.WriteResponse(w, http.StatusUnauthorized, validateSessionResponse{
			Valid: false,
			Error: err.Error(),
		})
		return
	}

	h.recorder.RecordValidation("valid")
	jsonwriter.Write(w, validateSessionResponse{
		Valid: true,
		User:  claimsToUserResponse(claims),
	})
}

// ClearSession handles DELETE requests. Clearing always succeeds from the
// caller's point of view; revocation of the server-side session ID is best
// effort.
func (h *SessionHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	if sessionValue, err := cookie.GetSession(r); err == nil {
		// Skip the revocation check here: a revoked cookie being cleared
		// again is fine, we only need the session ID
		if claims, err := h.provider.VerifySessionCookie(r.Context(), sessionValue, false); err == nil {
			if revoker, ok := h.provider.(identity.SessionRevoker); ok {
				revoker.RevokeSession(r.Context(), claims.SessionID, time.Now().Add(cookie.SessionTTL))
				h.recorder.RecordSessionRevoked()
			}
		} else {
			log.LogDebugWithFields("session", "clearing unverifiable session cookie", map[string]any{
				"error": err.Error(),
			})
			h.recorder.RecordClearFailure()
		}
	}

	domain := r.URL.Query().Get("domain")
	if domain == "" {
		domain = h.defaultDomain
	}
	cookie.ClearSession(w, domain)
	jsonwriter.Write(w, map[string]bool{"success": true})
}

// claimsToUserResponse maps claims into the response shape. Unset claims
// serialize as null rather than empty strings.
func claimsToUserResponse(claims *identity.Claims) *sessionUserResponse {
	resp := &sessionUserResponse{}
	if claims.UID != "" {
		resp.UID = &claims.UID
	}
	if claims.Email != "" {
		resp.Email = &claims.Email
	}
	if claims.Name != "" {
		resp.Name = &claims.Name
	}
	return resp
}
