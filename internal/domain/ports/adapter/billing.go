package adapter

import (
	"context"

	"pet-subscription-sync/internal/domain/model"
)

// BillingProvider is the hex port for the authoritative billing system.
type BillingProvider interface {
	Name() string

	// FindCustomerByEmail returns the first customer registered under email,
	// or domain.ErrNotFound. Multiple matches are not disambiguated.
	FindCustomerByEmail(ctx context.Context, email string) (*model.BillingCustomer, error)
	GetCustomer(ctx context.Context, customerID string) (*model.BillingCustomer, error)
	// ListSubscriptions returns every subscription of the customer regardless of state.
	ListSubscriptions(ctx context.Context, customerID string) ([]model.BillingSubscription, error)
}

// EventVerifier authenticates and decodes raw webhook deliveries.
type EventVerifier interface {
	// SignatureHeader is the HTTP header carrying the provider signature.
	SignatureHeader() string
	// Configured is false when no signing secret is available.
	Configured() bool
	// Verify returns domain.ErrInvalidSignature when the payload is not authentic.
	Verify(payload []byte, signature string) (*model.BillingEvent, error)
}
