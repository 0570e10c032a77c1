package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/repository"
)

// AuditService records security-relevant actions. Entries are stamped with
// the bound tenant scope by the repository.
type AuditService struct {
	audit  repository.AuditRepository
	node   *snowflake.Node
	logger *zap.Logger
}

// NewAuditService wires dependencies.
func NewAuditService(audit repository.AuditRepository, node *snowflake.Node, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.L()
	}
	return &AuditService{audit: audit, node: node, logger: logger}
}

// AuditOption customizes an audit entry.
type AuditOption func(*domain.AuditEntry)

// WithMeta attaches structured metadata to the entry.
func WithMeta(meta map[string]any) AuditOption {
	return func(e *domain.AuditEntry) { e.Meta = meta }
}

// WithTarget records the entity the action applied to.
func WithTarget(targetType, targetID string) AuditOption {
	return func(e *domain.AuditEntry) {
		e.TargetType = targetType
		e.TargetID = targetID
	}
}

// WithRequestInfo records the caller's network identity.
func WithRequestInfo(ip, userAgent string) AuditOption {
	return func(e *domain.AuditEntry) {
		e.IP = ip
		e.UserAgent = userAgent
	}
}

// Log appends an audit entry for the given actor and action.
func (s *AuditService) Log(ctx context.Context, actorUserID int64, action string, opts ...AuditOption) error {
	entry := domain.AuditEntry{
		ID:          s.node.Generate().Int64(),
		ActorUserID: actorUserID,
		Action:      action,
	}
	for _, opt := range opts {
		opt(&entry)
	}

	recorded, err := s.audit.Append(ctx, entry)
	if err != nil {
		s.logger.Error("audit append failed", zap.String("action", action), zap.Error(err))
		return err
	}

	s.logger.Info("audit",
		zap.String("action", recorded.Action),
		zap.Int64("tenant_id", recorded.TenantID),
		zap.Int64("actor_user_id", recorded.ActorUserID),
	)
	return nil
}
