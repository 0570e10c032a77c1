// Package session manages access/refresh token pairs and single-use
// password-reset tickets against the shared ephemeral store.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/store"
	"github.com/mendyturner/xyberiq-app/internal/token"
)

// Key prefixes in the ephemeral store. The presence of a refresh key is the
// sole source of truth for whether that refresh token is still usable.
const (
	refreshKeyPrefix = "refresh:"
	resetKeyPrefix   = "pwdreset:"
)

const resetTicketBytes = 32

// TokenPair is the result of issuing or rotating credentials.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Service issues, validates, rotates, and revokes credentials.
type Service struct {
	codec    *token.Codec
	store    store.Store
	resetTTL time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService wires dependencies.
func NewService(codec *token.Codec, st store.Store, resetTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.L()
	}
	return &Service{
		codec:    codec,
		store:    st,
		resetTTL: resetTTL,
		logger:   logger,
		tracer:   otel.Tracer("github.com/mendyturner/xyberiq-app/internal/session"),
	}
}

// IssuePair builds an access/refresh pair for the user within the tenant
// and registers the refresh token's liveness record with a TTL equal to its
// signed expiry.
func (s *Service) IssuePair(ctx context.Context, user domain.User, tenant domain.Tenant) (TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "session.IssuePair")
	defer span.End()

	roles := user.RoleKeys()

	access, _, err := s.codec.SignAccess(user.ID, tenant.ID, roles)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, refreshID, err := s.codec.SignRefresh(user.ID, tenant.ID, roles)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	err = s.store.SetEx(ctx, refreshKeyPrefix+refreshID, strconv.FormatInt(user.ID, 10), s.codec.RefreshTTL())
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("register refresh liveness: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.codec.AccessTTL().Seconds()),
	}, nil
}

// ValidateRefresh decodes and verifies a refresh token, then checks its
// liveness record. A token that fails decoding is ErrInvalidToken; one that
// verifies but has no liveness record is ErrTokenRevoked. The two are kept
// distinct because the caller's recovery differs.
func (s *Service) ValidateRefresh(ctx context.Context, raw string) (*token.Claims, error) {
	ctx, span := s.tracer.Start(ctx, "session.ValidateRefresh")
	defer span.End()

	claims, err := s.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Scope != token.ScopeRefresh {
		return nil, fmt.Errorf("scope %q: %w", claims.Scope, domain.ErrInvalidToken)
	}

	alive, err := s.store.Exists(ctx, refreshKeyPrefix+claims.TokenID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check refresh liveness: %w", err)
	}
	if !alive {
		s.logger.Info("refresh token presented after revocation",
			zap.String("token_id", claims.TokenID),
			zap.Int64("tenant_id", claims.TenantID),
			zap.Int64("user_id", claims.UserID),
		)
		return nil, fmt.Errorf("token %s: %w", claims.TokenID, domain.ErrTokenRevoked)
	}
	return claims, nil
}

// RevokeRefresh idempotently deletes the refresh token's liveness record.
// Revoking an already-revoked token is a no-op.
func (s *Service) RevokeRefresh(ctx context.Context, tokenID string) error {
	if strings.TrimSpace(tokenID) == "" {
		return nil
	}
	if err := s.store.Del(ctx, refreshKeyPrefix+tokenID); err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}

// Rotate revokes the consumed refresh token and issues a brand-new pair.
// Refresh tokens are single-use: presenting the old token again fails as
// revoked.
func (s *Service) Rotate(ctx context.Context, consumed *token.Claims, user domain.User, tenant domain.Tenant) (TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "session.Rotate")
	defer span.End()

	if err := s.RevokeRefresh(ctx, consumed.TokenID); err != nil {
		span.RecordError(err)
		return TokenPair{}, err
	}
	return s.IssuePair(ctx, user, tenant)
}

// CreateResetTicket mints an opaque single-use password-reset ticket bound
// to (tenant, user) with a bounded TTL.
func (s *Service) CreateResetTicket(ctx context.Context, tenantID, userID int64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "session.CreateResetTicket")
	defer span.End()

	ticket := newResetTicket()
	value := fmt.Sprintf("%d:%d", tenantID, userID)
	if err := s.store.SetEx(ctx, resetKeyPrefix+ticket, value, s.resetTTL); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("persist reset ticket: %w", err)
	}
	return ticket, nil
}

// ConsumeResetTicket atomically reads and deletes the ticket so that
// concurrent redemption attempts yield exactly one success. Expired,
// consumed, and never-issued tickets are indistinguishable to the caller.
func (s *Service) ConsumeResetTicket(ctx context.Context, ticket string) (tenantID, userID int64, err error) {
	ctx, span := s.tracer.Start(ctx, "session.ConsumeResetTicket")
	defer span.End()

	value, ok, err := s.store.GetDel(ctx, resetKeyPrefix+ticket)
	if err != nil {
		span.RecordError(err)
		return 0, 0, fmt.Errorf("consume reset ticket: %w", err)
	}
	if !ok {
		return 0, 0, domain.ErrTicketExpiredOrConsumed
	}

	if _, err := fmt.Sscanf(value, "%d:%d", &tenantID, &userID); err != nil {
		return 0, 0, fmt.Errorf("decode reset ticket: %w", domain.ErrTicketExpiredOrConsumed)
	}
	return tenantID, userID, nil
}

func newResetTicket() string {
	b := make([]byte, resetTicketBytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
