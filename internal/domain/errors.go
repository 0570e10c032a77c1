package domain

import "errors"

// Resolution failures. All of these reject the request outright and are
// never retried.
var (
	ErrTenantNotFound          = errors.New("tenant not found")
	ErrTenantMismatch          = errors.New("tenant mismatch")
	ErrMissingTenantClaim      = errors.New("token missing tenant claim")
	ErrMissingTenantIdentifier = errors.New("missing tenant identifier")
)

// Credential failures.
var (
	// ErrInvalidToken covers malformed, expired, badly signed, and
	// wrong-scope tokens. The caller must re-authenticate.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked means the token verified but its liveness record is
	// gone. Surfaced to clients identically to ErrInvalidToken, logged
	// distinctly.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrInvalidCredentials deliberately does not distinguish an unknown
	// user from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTicketExpiredOrConsumed deliberately does not distinguish a ticket
	// that expired from one that never existed or was already redeemed.
	ErrTicketExpiredOrConsumed = errors.New("reset ticket invalid or expired")
)

var (
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNoScope indicates a tenant-scoped data operation ran without a
	// bound tenant scope. This is a programming error, not user input.
	ErrNoScope = errors.New("no tenant scope bound")

	ErrNotFound     = errors.New("not found")
	ErrTenantExists = errors.New("tenant slug already exists")
	ErrInvalidSlug  = errors.New("tenant slug unusable")
)
