// Package token signs and verifies the compact claims-bearing tokens used
// for access, refresh, and their validation.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/mendyturner/xyberiq-app/internal/domain"
)

// Token scopes. Access tokens are stateless; refresh tokens additionally
// carry a liveness record in the ephemeral store.
const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"
)

// Claims is the decoded payload of a signed token.
type Claims struct {
	UserID   int64
	TenantID int64
	Scope    string
	Roles    []string
	TokenID  string
	Expiry   time.Time
}

type customClaims struct {
	TenantID int64    `json:"tenant_id"`
	Scope    string   `json:"scope"`
	Roles    []string `json:"roles,omitempty"`
}

// Codec signs and verifies tokens with a symmetric deployment key.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec constructs a codec. The signing key, issuer, audience, and TTLs
// are deployment configuration.
func NewCodec(secret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL is the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess produces a signed access token and its token id.
func (c *Codec) SignAccess(userID, tenantID int64, roles []string) (string, string, error) {
	return c.sign(userID, tenantID, ScopeAccess, roles, c.accessTTL)
}

// SignRefresh produces a signed refresh token and its token id. The caller
// is responsible for registering the matching liveness record.
func (c *Codec) SignRefresh(userID, tenantID int64, roles []string) (string, string, error) {
	return c.sign(userID, tenantID, ScopeRefresh, roles, c.refreshTTL)
}

func (c *Codec) sign(userID, tenantID int64, scope string, roles []string, ttl time.Duration) (string, string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", "", fmt.Errorf("new signer: %w", err)
	}

	tokenID := newTokenID()
	now := time.Now().UTC()
	std := gojwt.Claims{
		ID:        tokenID,
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    c.issuer,
		Audience:  gojwt.Audience{c.audience},
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := customClaims{TenantID: tenantID, Scope: scope, Roles: roles}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, tokenID, nil
}

// Decode verifies the signature, issuer, audience, and validity window, and
// returns the claims. Any failure is ErrInvalidToken; the caller cannot
// learn which check failed.
func (c *Codec) Decode(raw string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", domain.ErrInvalidToken)
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		return nil, fmt.Errorf("verify token: %w", domain.ErrInvalidToken)
	}

	// Zero leeway: an expired token is expired, the default one-minute
	// grace window would defeat short-lived access tokens.
	err = std.ValidateWithLeeway(gojwt.Expected{
		Issuer:      c.issuer,
		AnyAudience: gojwt.Audience{c.audience},
		Time:        time.Now(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("validate claims: %w", domain.ErrInvalidToken)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse subject: %w", domain.ErrInvalidToken)
	}

	return &Claims{
		UserID:   userID,
		TenantID: custom.TenantID,
		Scope:    custom.Scope,
		Roles:    custom.Roles,
		TokenID:  std.ID,
		Expiry:   std.Expiry.Time(),
	}, nil
}

func newTokenID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
