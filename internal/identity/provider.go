package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenExpired is returned when an ID token's lifetime has passed
	ErrTokenExpired = errors.New("ID token has expired")

	// ErrSessionExpired is returned when a session cookie's lifetime has passed
	ErrSessionExpired = errors.New("session has expired")

	// ErrSessionRevoked is returned when a session cookie was explicitly revoked
	ErrSessionRevoked = errors.New("session has been revoked")
)

// Claims are the identity attributes embedded in ID tokens and session cookies
type Claims struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

// Provider abstracts the identity provider the portal delegates credential
// verification to. The portal calls these three operations and nothing else.
type Provider interface {
	// VerifyIDToken checks a client-supplied ID token and returns its claims.
	VerifyIDToken(ctx context.Context, idToken string) (*Claims, error)

	// MintSessionCookie exchanges a verified ID token for a session cookie
	// value with the given lifetime.
	MintSessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)

	// VerifySessionCookie checks a session cookie value and returns its
	// claims. When checkRevoked is true the cookie must also not have been
	// revoked since issuance.
	VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*Claims, error)
}

// SessionRevoker is implemented by providers that can invalidate a session
// before its cookie expires. expiresAt bounds how long the revocation must
// be remembered.
type SessionRevoker interface {
	RevokeSession(ctx context.Context, sessionID string, expiresAt time.Time)
}
