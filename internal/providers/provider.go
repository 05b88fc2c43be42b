package providers

import (
	"context"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
)

// Provider is the interface that payment provider clients implement.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// ListActiveProducts returns active catalog entries with their default price.
	ListActiveProducts(ctx context.Context) ([]billing.CatalogEntry, error)
	// CreateCheckoutSession creates a hosted subscription checkout.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSessionResult, error)
	// CreatePortalSession creates a hosted billing-management session.
	CreatePortalSession(ctx context.Context, req PortalRequest) (*billing.PortalSession, error)
	// Ping performs an authenticated round trip to the provider.
	Ping(ctx context.Context) error
}

// CheckoutRequest contains the data needed to open a checkout session.
type CheckoutRequest struct {
	PriceID              string
	SuccessURL           string
	CancelURL            string
	ClientReferenceID    string
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
}

// PortalRequest contains the data needed to open a billing portal session.
type PortalRequest struct {
	CustomerID string
	ReturnURL  string
}
