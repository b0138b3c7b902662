package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bndy-dev/bndy-portal/internal/cookie"
	"github.com/bndy-dev/bndy-portal/internal/crypto"
	"github.com/bndy-dev/bndy-portal/internal/identity"
	"github.com/bndy-dev/bndy-portal/internal/idp"
	jsonwriter "github.com/bndy-dev/bndy-portal/internal/json"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"github.com/bndy-dev/bndy-portal/internal/storage"
)

const (
	authStateTTL    = 10 * time.Minute
	codeExchangeTTL = 30 * time.Second
)

// AuthorizationState is signed into the OAuth state parameter so the
// callback can verify the round trip and restore the return URL
type AuthorizationState struct {
	Nonce     string `json:"nonce"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

// GoogleHandler drives the Google social sign-in flow: a login redirect
// carrying a signed state, then a callback that exchanges the code and
// establishes a portal session.
type GoogleHandler struct {
	provider    idp.Provider
	sessions    *identity.SignerProvider
	store       storage.Storage
	stateSigner *crypto.TokenSigner
}

// NewGoogleHandler creates a Google sign-in handler
func NewGoogleHandler(provider idp.Provider, sessions *identity.SignerProvider, store storage.Storage, stateSigner *crypto.TokenSigner) *GoogleHandler {
	return &GoogleHandler{
		provider:    provider,
		sessions:    sessions,
		store:       store,
		stateSigner: stateSigner,
	}
}

// Login handles GET /api/auth/google/login
func (h *GoogleHandler) Login(w http.ResponseWriter, r *http.Request) {
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		log.LogError("failed to generate state nonce: %v", err)
		jsonwriter.WriteInternalServerError(w)
		return
	}

	state, err := h.stateSigner.SignWithTTL(AuthorizationState{
		Nonce:     nonce,
		ReturnURL: sanitizeReturnURL(r.URL.Query().Get("returnUrl")),
	}, authStateTTL)
	if err != nil {
		log.LogError("failed to sign authorization state: %v", err)
		jsonwriter.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusFound)
}

// Callback handles GET /api/auth/google/callback
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		log.LogWarnWithFields("google", "provider returned error", map[string]any{
			"error": errParam,
		})
		jsonwriter.WriteUnauthorized(w, "Sign-in was cancelled or failed")
		return
	}

	var state AuthorizationState
	if err := h.stateSigner.Verify(r.URL.Query().Get("state"), &state); err != nil {
		log.LogWarnWithFields("google", "invalid authorization state", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteUnauthorized(w, "Invalid authorization state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		jsonwriter.WriteBadRequest(w, "Missing authorization code")
		return
	}

	// The exchange talks to an external provider, so it gets its own timeout
	ctx, cancel := context.WithTimeout(r.Context(), codeExchangeTTL)
	defer cancel()

	info, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		log.LogErrorWithFields("google", "code exchange failed", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteUnauthorized(w, "Failed to complete sign-in")
		return
	}

	uid := h.provider.Type() + ":" + info.Subject
	idToken, err := h.sessions.MintIDToken(r.Context(), identity.Claims{
		UID:   uid,
		Email: info.Email,
		Name:  info.Name,
	}, identity.DefaultIDTokenTTL)
	if err != nil {
		log.LogErrorWithFields("google", "failed to mint ID token", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w)
		return
	}

	sessionCookie, err := h.sessions.MintSessionCookie(r.Context(), idToken, cookie.SessionTTL)
	if err != nil {
		log.LogErrorWithFields("google", "failed to mint session cookie", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w)
		return
	}

	cookie.SetSession(w, sessionCookie, cookie.Options{})

	if err := h.store.UpsertUser(r.Context(), uid, info.Email, info.Name); err != nil {
		log.LogWarnWithFields("google", "user upsert failed", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("google", "sign-in completed", map[string]any{
		"uid": uid,
	})

	returnURL := state.ReturnURL
	if returnURL == "" {
		returnURL = "/"
	}
	http.Redirect(w, r, returnURL, http.StatusFound)
}

// sanitizeReturnURL only accepts relative paths, so the callback can never
// redirect off-site
func sanitizeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}
