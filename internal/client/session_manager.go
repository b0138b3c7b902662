package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bndy-dev/bndy-portal/internal/cookie"
	"github.com/bndy-dev/bndy-portal/internal/log"
)

// SessionUser is the identity attached to a validated session
type SessionUser struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// SessionState is the observable authentication state
type SessionState struct {
	IsAuthenticated bool
	User            *SessionUser
	SessionID       string
}

// ValidationResult reports the outcome of a session validation.
// Error carries a diagnostic message when IsValid is false; validation
// itself never fails loudly.
type ValidationResult struct {
	IsValid bool
	User    *SessionUser
	Error   string
}

type errorResponse struct {
	Error string `json:"error"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
	User  *struct {
		UID   *string `json:"uid"`
		Email *string `json:"email"`
		Name  *string `json:"name"`
	} `json:"user"`
	Error string `json:"error"`
}

// SessionManager drives the session cookie lifecycle against the portal's
// session endpoints. The embedded HTTP client carries a cookie jar so the
// session cookie set by the server rides along on subsequent calls.
type SessionManager struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	state     SessionState
	listeners map[int]func(SessionState)
	nextID    int

	validateGroup singleflight.Group
}

// Option configures a SessionManager
type Option func(*SessionManager)

// WithHTTPClient overrides the default cookie-jar client
func WithHTTPClient(c *http.Client) Option {
	return func(m *SessionManager) {
		m.httpClient = c
	}
}

// NewSessionManager creates a SessionManager for the portal at baseURL
func NewSessionManager(baseURL string, opts ...Option) *SessionManager {
	m := &SessionManager{
		baseURL:   strings.TrimRight(baseURL, "/"),
		listeners: map[int]func(SessionState){},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.httpClient == nil {
		jar, _ := cookiejar.New(nil)
		m.httpClient = &http.Client{Jar: jar}
	}
	return m
}

// CreateSessionCookie exchanges the user's ID token for a session cookie.
// opts, when non-nil, is forwarded so the server mints the cookie with the
// caller's domain and SameSite settings. If the server rejects the token as
// expired, a fresh token is fetched and the exchange retried exactly once.
func (m *SessionManager) CreateSessionCookie(ctx context.Context, user User, opts *cookie.Options) error {
	token, err := user.IDToken(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to get ID token: %w", err)
	}

	status, serverErr, err := m.postSession(ctx, user.UID(), token, opts)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	if status == http.StatusUnauthorized && strings.Contains(strings.ToLower(serverErr), "expired") {
		log.LogDebugWithFields("client", "ID token expired, retrying with fresh token", map[string]any{
			"uid": user.UID(),
		})
		token, err = user.IDToken(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to refresh ID token: %w", err)
		}
		status, serverErr, err = m.postSession(ctx, user.UID(), token, opts)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			return nil
		}
	}

	return fmt.Errorf("failed to create session cookie: %s", serverErr)
}

type createSessionRequest struct {
	IDToken       string          `json:"idToken"`
	UID           string          `json:"uid"`
	CookieOptions *cookie.Options `json:"cookieOptions,omitempty"`
}

// postSession performs one POST /api/auth/session exchange. It returns the
// HTTP status and the server's error message, reserving the error return
// for transport failures.
func (m *SessionManager) postSession(ctx context.Context, uid, idToken string, opts *cookie.Options) (int, string, error) {
	body, err := json.Marshal(createSessionRequest{
		IDToken:       idToken,
		UID:           uid,
		CookieOptions: opts,
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/auth/session", bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create session cookie: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return resp.StatusCode, "", nil
	}

	var errResp errorResponse
	data, _ := io.ReadAll(resp.Body)
	if jsonErr := json.Unmarshal(data, &errResp); jsonErr != nil || errResp.Error == "" {
		errResp.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, errResp.Error, nil
}

// ValidateSession checks the current session cookie against the server.
// It never returns an error: any failure, from a missing cookie to the
// network being down, yields an invalid result with a diagnostic message.
// Concurrent calls are coalesced into a single request carrying the first
// caller's context: if that caller cancels mid-flight, every coalesced
// caller receives the cancelled (invalid) result and the next call starts
// a fresh request.
func (m *SessionManager) ValidateSession(ctx context.Context) ValidationResult {
	v, _, _ := m.validateGroup.Do("validate", func() (any, error) {
		return m.validateOnce(ctx), nil
	})
	return v.(ValidationResult)
}

func (m *SessionManager) validateOnce(ctx context.Context) ValidationResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/api/auth/session", nil)
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.LogDebugWithFields("client", "session validation request failed", map[string]any{
			"error": err.Error(),
		})
		return ValidationResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	var parsed validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ValidationResult{Error: "invalid validation response"}
	}

	if resp.StatusCode != http.StatusOK || !parsed.Valid {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return ValidationResult{Error: msg}
	}

	result := ValidationResult{IsValid: true}
	if parsed.User != nil {
		u := &SessionUser{}
		if parsed.User.UID != nil {
			u.UID = *parsed.User.UID
		}
		if parsed.User.Email != nil {
			u.Email = *parsed.User.Email
		}
		result.User = u
	}
	return result
}

// ClearSessionCookie asks the server to clear the session cookie. Failures
// are logged and swallowed so sign-out flows always complete.
func (m *SessionManager) ClearSessionCookie(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.baseURL+"/api/auth/session", nil)
	if err != nil {
		log.LogWarnWithFields("client", "failed to build session clear request", map[string]any{
			"error": err.Error(),
		})
		return
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.LogWarnWithFields("client", "failed to clear session cookie", map[string]any{
			"error": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.LogWarnWithFields("client", "session clear returned non-OK status", map[string]any{
			"status": resp.StatusCode,
		})
	}
}

// RefreshToken forces a fresh ID token and returns it, for callers that
// need a guaranteed-fresh token for purposes beyond the session cookie.
// It does not touch the session; recreate it with CreateSessionCookie.
func (m *SessionManager) RefreshToken(ctx context.Context, user User) (string, error) {
	token, err := user.IDToken(ctx, true)
	if err != nil {
		return "", fmt.Errorf("failed to refresh ID token: %w", err)
	}
	return token, nil
}

// GetSessionState returns a copy of the current session state
func (m *SessionManager) GetSessionState() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// SetSessionState replaces the session state and notifies listeners
func (m *SessionManager) SetSessionState(state SessionState) {
	m.mu.Lock()
	m.state = copyState(state)
	listeners := make([]func(SessionState), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		notifyListener(fn, copyState(state))
	}
}

// OnSessionStateChange registers a listener and returns a disposer that
// removes it. Listeners receive their own copy of the state.
func (m *SessionManager) OnSessionStateChange(listener func(SessionState)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// notifyListener isolates listener panics so one bad subscriber cannot
// break state propagation to the rest
func notifyListener(fn func(SessionState), state SessionState) {
	defer func() {
		if r := recover(); r != nil {
			log.LogErrorWithFields("client", "session state listener panicked", map[string]any{
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	fn(state)
}

func copyState(s SessionState) SessionState {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
