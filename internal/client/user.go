// Package client implements the portal's browser-side session lifecycle
// against the session endpoints: cookie creation with expired-token retry,
// validation that never fails loudly, and observable session state.
package client

import "context"

// User is the authenticated identity a session is created for.
// IDToken returns a fresh token when forceRefresh is true; implementations
// wrap whatever identity SDK the embedding application uses.
type User interface {
	UID() string
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}
