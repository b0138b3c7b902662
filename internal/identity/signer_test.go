package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key-that-is-32-bytes!")

func newTestProvider(t *testing.T) *SignerProvider {
	t.Helper()
	p, err := NewSignerProvider(testSigningKey)
	require.NoError(t, err)
	return p
}

func TestNewSignerProviderRejectsShortKey(t *testing.T) {
	_, err := NewSignerProvider([]byte("too-short"))
	assert.Error(t, err)
}

func TestIDTokenRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	token, err := p.MintIDToken(ctx, Claims{UID: "user-1", Email: "a@b.test", Name: "Alice"}, 0)
	require.NoError(t, err)

	claims, err := p.VerifyIDToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UID)
	assert.Equal(t, "a@b.test", claims.Email)
	assert.Equal(t, "Alice", claims.Name)
}

func TestMintIDTokenRequiresUID(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.MintIDToken(context.Background(), Claims{Email: "a@b.test"}, 0)
	assert.Error(t, err)
}

func TestVerifyIDTokenExpired(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	token, err := p.MintIDToken(ctx, Claims{UID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = p.VerifyIDToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyIDTokenGarbage(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.VerifyIDToken(context.Background(), "garbage")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	idToken, err := p.MintIDToken(ctx, Claims{UID: "user-1", Email: "a@b.test"}, 0)
	require.NoError(t, err)

	cookie, err := p.MintSessionCookie(ctx, idToken, time.Hour)
	require.NoError(t, err)

	claims, err := p.VerifySessionCookie(ctx, cookie, true)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UID)
	assert.Equal(t, "a@b.test", claims.Email)
	assert.NotEmpty(t, claims.SessionID)
}

func TestSessionCookiesGetUniqueSessionIDs(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	idToken, err := p.MintIDToken(ctx, Claims{UID: "user-1"}, 0)
	require.NoError(t, err)

	c1, err := p.MintSessionCookie(ctx, idToken, time.Hour)
	require.NoError(t, err)
	c2, err := p.MintSessionCookie(ctx, idToken, time.Hour)
	require.NoError(t, err)

	claims1, err := p.VerifySessionCookie(ctx, c1, false)
	require.NoError(t, err)
	claims2, err := p.VerifySessionCookie(ctx, c2, false)
	require.NoError(t, err)

	assert.NotEqual(t, claims1.SessionID, claims2.SessionID)
}

func TestMintSessionCookieRejectsExpiredIDToken(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	idToken, err := p.MintIDToken(ctx, Claims{UID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = p.MintSessionCookie(ctx, idToken, time.Hour)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifySessionCookieExpired(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	idToken, err := p.MintIDToken(ctx, Claims{UID: "user-1"}, 0)
	require.NoError(t, err)

	cookie, err := p.MintSessionCookie(ctx, idToken, -time.Minute)
	require.NoError(t, err)

	_, err = p.VerifySessionCookie(ctx, cookie, true)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRevokedSessionFailsOnlyWithRevocationCheck(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	idToken, err := p.MintIDToken(ctx, Claims{UID: "user-1"}, 0)
	require.NoError(t, err)
	cookie, err := p.MintSessionCookie(ctx, idToken, time.Hour)
	require.NoError(t, err)

	claims, err := p.VerifySessionCookie(ctx, cookie, true)
	require.NoError(t, err)

	p.RevokeSession(ctx, claims.SessionID, time.Now().Add(time.Hour))

	_, err = p.VerifySessionCookie(ctx, cookie, true)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// Without the check the signature and expiry still hold
	_, err = p.VerifySessionCookie(ctx, cookie, false)
	assert.NoError(t, err)
}

func TestDenyListCleanupDropsExpiredEntries(t *testing.T) {
	dl := NewDenyList()
	dl.Add("old", time.Now().Add(-time.Minute))
	dl.Add("current", time.Now().Add(time.Hour))

	assert.True(t, dl.IsRevoked("current"))

	assert.Equal(t, 1, dl.Cleanup())

	assert.False(t, dl.IsRevoked("old"))
	assert.True(t, dl.IsRevoked("current"))

	// A second pass has nothing left to drop
	assert.Equal(t, 0, dl.Cleanup())
}
