package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenTestPayload struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("test-signing-key-that-is-32-bytes!"), time.Hour)

	token, err := signer.Sign(tokenTestPayload{UID: "user-1", Email: "user@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	var out tokenTestPayload
	err = signer.Verify(token, &out)
	require.NoError(t, err)
	assert.Equal(t, "user-1", out.UID)
	assert.Equal(t, "user@example.com", out.Email)
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	signer := NewTokenSigner([]byte("test-signing-key-that-is-32-bytes!"), time.Hour)

	token, err := signer.Sign(tokenTestPayload{UID: "user-1"})
	require.NoError(t, err)

	// Flip a character in the payload part
	tampered := "x" + token[1:]
	var out tokenTestPayload
	assert.Error(t, signer.Verify(tampered, &out))

	// Garbage input
	assert.Error(t, signer.Verify("not-a-token", &out))
	assert.Error(t, signer.Verify("", &out))
}

func TestTokenSignerRejectsWrongKey(t *testing.T) {
	signer := NewTokenSigner([]byte("test-signing-key-that-is-32-bytes!"), time.Hour)
	other := NewTokenSigner([]byte("another-signing-key-also-32-bytes!"), time.Hour)

	token, err := signer.Sign(tokenTestPayload{UID: "user-1"})
	require.NoError(t, err)

	var out tokenTestPayload
	err = other.Verify(token, &out)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestTokenSignerExpiry(t *testing.T) {
	signer := NewTokenSigner([]byte("test-signing-key-that-is-32-bytes!"), time.Hour)

	token, err := signer.SignWithTTL(tokenTestPayload{UID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	var out tokenTestPayload
	err = signer.Verify(token, &out)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenSignerZeroTTLNeverExpires(t *testing.T) {
	signer := NewTokenSigner([]byte("test-signing-key-that-is-32-bytes!"), 0)

	token, err := signer.Sign(tokenTestPayload{UID: "user-1"})
	require.NoError(t, err)

	var out tokenTestPayload
	assert.NoError(t, signer.Verify(token, &out))
}

func TestTokenFormat(t *testing.T) {
	signer := NewTokenSigner([]byte("test-signing-key-that-is-32-bytes!"), time.Hour)

	token, err := signer.Sign(tokenTestPayload{UID: "user-1"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	assert.Len(t, parts, 2)
}
