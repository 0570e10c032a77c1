package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec() *token.Codec {
	return token.NewCodec(testSecret, "xyberiq-app", "xyberiq-clients", 15*time.Minute, 24*time.Hour)
}

func TestSignAccessRoundtrip(t *testing.T) {
	codec := newTestCodec()

	raw, tokenID, err := codec.SignAccess(101, 7, []string{"admin", "employee"})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.Len(t, tokenID, 32)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, int64(101), claims.UserID)
	require.Equal(t, int64(7), claims.TenantID)
	require.Equal(t, token.ScopeAccess, claims.Scope)
	require.Equal(t, []string{"admin", "employee"}, claims.Roles)
	require.Equal(t, tokenID, claims.TokenID)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), claims.Expiry, 5*time.Second)
}

func TestSignRefreshScope(t *testing.T) {
	codec := newTestCodec()

	raw, _, err := codec.SignRefresh(101, 7, nil)
	require.NoError(t, err)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, token.ScopeRefresh, claims.Scope)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), claims.Expiry, 5*time.Second)
}

func TestTokenIDsAreUnique(t *testing.T) {
	codec := newTestCodec()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		_, tokenID, err := codec.SignAccess(1, 1, nil)
		require.NoError(t, err)
		require.False(t, seen[tokenID])
		seen[tokenID] = true
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	codec := token.NewCodec(testSecret, "xyberiq-app", "xyberiq-clients", 50*time.Millisecond, 50*time.Millisecond)

	raw, _, err := codec.SignAccess(101, 7, nil)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecodeWrongKey(t *testing.T) {
	codec := newTestCodec()
	other := token.NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "xyberiq-app", "xyberiq-clients", time.Minute, time.Hour)

	raw, _, err := other.SignAccess(101, 7, nil)
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecodeWrongIssuer(t *testing.T) {
	codec := newTestCodec()
	other := token.NewCodec(testSecret, "someone-else", "xyberiq-clients", time.Minute, time.Hour)

	raw, _, err := other.SignAccess(101, 7, nil)
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecodeGarbage(t *testing.T) {
	codec := newTestCodec()

	for _, raw := range []string{"", "not-a-token", "aaaa.bbbb.cccc"} {
		_, err := codec.Decode(raw)
		require.ErrorIs(t, err, domain.ErrInvalidToken, "token %q", raw)
	}
}
