// Package billing is the interface boundary to the external billing
// provider. The integration itself lives outside this core; the stub keeps
// registration working without one attached.
package billing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// Customer is the billing provider's record for a tenant.
type Customer struct {
	CustomerID  string
	Email       string
	Provider    string
	TrialEndsAt *time.Time
}

// Provider creates customer records with an optional trial window.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name string, trialDays int) (Customer, error)
}

// StubProvider mints local customer ids without calling out.
type StubProvider struct {
	logger *zap.Logger
}

var _ Provider = (*StubProvider)(nil)

// NewStubProvider constructs the stub.
func NewStubProvider(logger *zap.Logger) *StubProvider {
	if logger == nil {
		logger = zap.L()
	}
	return &StubProvider{logger: logger}
}

func (p *StubProvider) CreateCustomer(ctx context.Context, email, name string, trialDays int) (Customer, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Customer{}, err
	}
	customer := Customer{
		CustomerID: "stub_" + hex.EncodeToString(b[:]),
		Email:      email,
		Provider:   "stub",
	}
	if trialDays > 0 {
		end := time.Now().UTC().Add(time.Duration(trialDays) * 24 * time.Hour)
		customer.TrialEndsAt = &end
	}
	p.logger.Info("stub billing customer created",
		zap.String("customer_id", customer.CustomerID),
		zap.String("email", email),
	)
	return customer, nil
}
