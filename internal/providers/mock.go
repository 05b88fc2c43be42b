package providers

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/google/uuid"
)

const ProviderMock = "mock"

// MockProvider is an in-memory provider for local development and tests.
type MockProvider struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	catalog     []billing.CatalogEntry
	baseURL     string

	mu        sync.Mutex
	checkouts []CheckoutRequest
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func WithCatalog(entries ...billing.CatalogEntry) MockProviderOption {
	return func(p *MockProvider) { p.catalog = entries }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{
		name:    name,
		latency: 0,
		baseURL: "https://checkout.mock.local",
		catalog: []billing.CatalogEntry{
			{
				ID:           "prod_mock_basic",
				Name:         "Basic",
				Description:  "Basic plan",
				Active:       true,
				DefaultPrice: &billing.Price{ID: "price_mock_basic", UnitAmount: 999, Currency: "usd"},
			},
			{
				ID:           "prod_mock_pro",
				Name:         "Pro",
				Active:       true,
				DefaultPrice: &billing.Price{ID: "price_mock_pro", UnitAmount: 2599, Currency: "usd"},
			},
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) ListActiveProducts(ctx context.Context) ([]billing.CatalogEntry, error) {
	if err := p.simulate(ctx, "list_products"); err != nil {
		return nil, err
	}
	out := make([]billing.CatalogEntry, 0, len(p.catalog))
	for _, e := range p.catalog {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *MockProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSessionResult, error) {
	if err := p.simulate(ctx, "create_checkout_session"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.checkouts = append(p.checkouts, req)
	p.mu.Unlock()

	id := fmt.Sprintf("cs_%s_%s", p.name, uuid.New().String()[:8])
	return &billing.CheckoutSessionResult{
		ID:  id,
		URL: fmt.Sprintf("%s/c/%s", p.baseURL, id),
	}, nil
}

func (p *MockProvider) CreatePortalSession(ctx context.Context, req PortalRequest) (*billing.PortalSession, error) {
	if err := p.simulate(ctx, "create_portal_session"); err != nil {
		return nil, err
	}
	return &billing.PortalSession{
		URL: fmt.Sprintf("%s/p/%s?return=%s", p.baseURL, req.CustomerID, req.ReturnURL),
	}, nil
}

func (p *MockProvider) Ping(ctx context.Context) error {
	return p.simulate(ctx, "retrieve_balance")
}

// Checkouts returns the checkout requests seen so far.
func (p *MockProvider) Checkouts() []CheckoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CheckoutRequest, len(p.checkouts))
	copy(out, p.checkouts)
	return out
}

func (p *MockProvider) simulate(ctx context.Context, op string) error {
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return domainErrors.NewProviderRequestError(op, ctx.Err())
		}
	}
	if rand.Float64() < p.failureRate {
		return domainErrors.NewProviderRequestError(op, fmt.Errorf("%s: simulated failure", p.name))
	}
	return nil
}
