package domain

import "time"

// AuditEntry records a security-relevant action within a tenant.
type AuditEntry struct {
	ID          int64
	TenantID    int64
	ActorUserID int64
	Action      string
	TargetType  string
	TargetID    string
	Meta        map[string]any
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}
