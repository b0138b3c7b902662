// Package idp provides social identity provider integrations for sign-in.
package idp

import (
	"context"
	"errors"
)

var ErrNoEmail = errors.New("identity provider returned no email")

// UserInfo is the profile returned by a provider after code exchange
type UserInfo struct {
	Subject string
	Email   string
	Name    string
}

// Provider abstracts an OAuth-based social sign-in provider
type Provider interface {
	// Type returns the provider identifier, e.g. "google"
	Type() string

	// AuthURL builds the authorization redirect URL for the given state
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code and fetches user info
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
}
