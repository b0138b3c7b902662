package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bndy-dev/bndy-portal/internal/crypto"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"github.com/google/uuid"
)

// DefaultIDTokenTTL is the lifetime of portal-minted ID tokens
const DefaultIDTokenTTL = time.Hour

// sessionPayload is the data signed into a session cookie
type sessionPayload struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"sid"`
}

// idTokenPayload is the data signed into an ID token
type idTokenPayload struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// SignerProvider implements Provider with HMAC-signed JSON tokens and an
// in-memory revocation deny list. The server stays stateless beyond the
// signing key: the cookie itself is the session record.
type SignerProvider struct {
	signer   crypto.TokenSigner
	denyList *DenyList
}

var _ Provider = (*SignerProvider)(nil)

// NewSignerProvider creates a provider signing with the given key
func NewSignerProvider(signingKey []byte) (*SignerProvider, error) {
	if len(signingKey) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes, got %d", len(signingKey))
	}
	return &SignerProvider{
		signer:   crypto.NewTokenSigner(signingKey, DefaultIDTokenTTL),
		denyList: NewDenyList(),
	}, nil
}

// StartRevocationCleanup drops expired deny-list entries on an interval
func (p *SignerProvider) StartRevocationCleanup(ctx context.Context, interval time.Duration) {
	p.denyList.StartCleanup(ctx, interval)
}

// MintIDToken issues an ID token for an identity the portal itself verified,
// e.g. after a social sign-in code exchange. Zero ttl uses the default.
func (p *SignerProvider) MintIDToken(ctx context.Context, claims Claims, ttl time.Duration) (string, error) {
	if claims.UID == "" {
		return "", fmt.Errorf("cannot mint ID token without a uid")
	}
	if ttl == 0 {
		ttl = DefaultIDTokenTTL
	}
	payload := idTokenPayload{
		UID:   claims.UID,
		Email: claims.Email,
		Name:  claims.Name,
	}
	token, err := p.signer.SignWithTTL(payload, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign ID token: %w", err)
	}
	return token, nil
}

// VerifyIDToken implements Provider
func (p *SignerProvider) VerifyIDToken(ctx context.Context, idToken string) (*Claims, error) {
	var payload idTokenPayload
	if err := p.signer.Verify(idToken, &payload); err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid ID token: %w", err)
	}
	return &Claims{
		UID:   payload.UID,
		Email: payload.Email,
		Name:  payload.Name,
	}, nil
}

// MintSessionCookie implements Provider. The embedded session ID is what a
// later revocation targets.
func (p *SignerProvider) MintSessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	claims, err := p.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}

	payload := sessionPayload{
		UID:       claims.UID,
		Email:     claims.Email,
		Name:      claims.Name,
		SessionID: uuid.NewString(),
	}

	cookie, err := p.signer.SignWithTTL(payload, expiresIn)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}

	log.LogDebugWithFields("identity", "Session cookie minted", map[string]any{
		"uid":       payload.UID,
		"sessionID": payload.SessionID,
		"expiresIn": expiresIn.String(),
	})

	return cookie, nil
}

// VerifySessionCookie implements Provider
func (p *SignerProvider) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*Claims, error) {
	var payload sessionPayload
	if err := p.signer.Verify(cookie, &payload); err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}

	if checkRevoked && p.denyList.IsRevoked(payload.SessionID) {
		return nil, ErrSessionRevoked
	}

	return &Claims{
		UID:       payload.UID,
		Email:     payload.Email,
		Name:      payload.Name,
		SessionID: payload.SessionID,
	}, nil
}

// RevokeSession marks a session ID as no longer trusted. The expiry bounds
// how long the deny-list entry must be retained.
func (p *SignerProvider) RevokeSession(ctx context.Context, sessionID string, expiresAt time.Time) {
	if sessionID == "" {
		return
	}
	p.denyList.Add(sessionID, expiresAt)
	log.LogInfoWithFields("identity", "Session revoked", map[string]any{
		"sessionID": sessionID,
	})
}
