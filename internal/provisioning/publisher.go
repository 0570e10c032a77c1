// Package provisioning is the interface boundary for tenant provisioning
// fan-out. Downstream delivery lives outside this core.
package provisioning

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Event describes a newly provisioned tenant.
type Event struct {
	TenantID    int64             `json:"tenant_id"`
	CustomerID  string            `json:"customer_id"`
	PlanCode    string            `json:"plan_code"`
	TrialEndsAt *time.Time        `json:"trial_ends_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Publisher delivers provisioning events to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher records provisioning events in the log when no downstream
// transport is configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ Publisher = (*LogPublisher)(nil)

// NewLogPublisher constructs the log-backed publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.L()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Info("provisioning event",
		zap.Int64("tenant_id", event.TenantID),
		zap.String("customer_id", event.CustomerID),
		zap.ByteString("payload", payload),
	)
	return nil
}
