package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const ProviderStripe = "stripe"

// StripeConfig configures a StripeProvider.
type StripeConfig struct {
	SecretKey string
	// BaseURL overrides the Stripe API URL. Used by tests.
	BaseURL    string
	HTTPClient *http.Client
}

// StripeProvider implements Provider on top of a per-app stripe-go client.
// The package-level stripe.Key is never touched so several apps can run side
// by side in one process.
type StripeProvider struct {
	client *client.API
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	bc := &stripe.BackendConfig{
		// Retries are the caller's decision.
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(strings.TrimSuffix(cfg.BaseURL, "/"))
	}
	if cfg.HTTPClient != nil {
		bc.HTTPClient = cfg.HTTPClient
	}

	sc := &client.API{}
	sc.Init(cfg.SecretKey, stripe.NewBackendsWithConfig(bc))

	return &StripeProvider{client: sc}
}

func (p *StripeProvider) Name() string { return ProviderStripe }

func (p *StripeProvider) ListActiveProducts(ctx context.Context) ([]billing.CatalogEntry, error) {
	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Context = ctx
	params.AddExpand("data.default_price")

	var entries []billing.CatalogEntry
	iter := p.client.Products.List(params)
	for iter.Next() {
		entries = append(entries, toCatalogEntry(iter.Product()))
	}
	if err := iter.Err(); err != nil {
		return nil, domainErrors.NewProviderRequestError("list_products", err)
	}
	return entries, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSessionResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: copyMetadata(req.SubscriptionMetadata),
		},
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, domainErrors.NewProviderRequestError("create_checkout_session", err)
	}
	return &billing.CheckoutSessionResult{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, req PortalRequest) (*billing.PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx

	sess, err := p.client.BillingPortalSessions.New(params)
	if err != nil {
		return nil, domainErrors.NewProviderRequestError("create_portal_session", err)
	}
	return &billing.PortalSession{URL: sess.URL}, nil
}

// Ping retrieves the account balance, the cheapest authenticated call.
func (p *StripeProvider) Ping(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx

	if _, err := p.client.Balance.Get(params); err != nil {
		return domainErrors.NewProviderRequestError("retrieve_balance", err)
	}
	return nil
}

func toCatalogEntry(p *stripe.Product) billing.CatalogEntry {
	entry := billing.CatalogEntry{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
	}
	if p.DefaultPrice != nil && p.DefaultPrice.ID != "" {
		entry.DefaultPrice = &billing.Price{
			ID:         p.DefaultPrice.ID,
			UnitAmount: p.DefaultPrice.UnitAmount,
			Currency:   string(p.DefaultPrice.Currency),
		}
	}
	return entry
}

// isClientError reports whether err is a 4xx answer from Stripe. Those say
// nothing about provider health.
func isClientError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 &&
		stripeErr.HTTPStatusCode != http.StatusTooManyRequests
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
