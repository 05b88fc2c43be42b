package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	"github.com/cassiomorais/billingbridge/internal/providers"
)

// --- Provider Mock ---

// MockProvider is a mock implementation of providers.Provider.
type MockProvider struct {
	mu        sync.Mutex
	checkouts []providers.CheckoutRequest
	portals   []providers.PortalRequest

	ListActiveProductsFunc    func(ctx context.Context) ([]billing.CatalogEntry, error)
	CreateCheckoutSessionFunc func(ctx context.Context, req providers.CheckoutRequest) (*billing.CheckoutSessionResult, error)
	CreatePortalSessionFunc   func(ctx context.Context, req providers.PortalRequest) (*billing.PortalSession, error)
	PingFunc                  func(ctx context.Context) error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) ListActiveProducts(ctx context.Context) ([]billing.CatalogEntry, error) {
	if m.ListActiveProductsFunc != nil {
		return m.ListActiveProductsFunc(ctx)
	}
	return nil, nil
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, req providers.CheckoutRequest) (*billing.CheckoutSessionResult, error) {
	m.mu.Lock()
	m.checkouts = append(m.checkouts, req)
	m.mu.Unlock()
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, req)
	}
	return &billing.CheckoutSessionResult{ID: "cs_test_1", URL: "https://checkout.test/cs_test_1"}, nil
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, req providers.PortalRequest) (*billing.PortalSession, error) {
	m.mu.Lock()
	m.portals = append(m.portals, req)
	m.mu.Unlock()
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(ctx, req)
	}
	return &billing.PortalSession{URL: "https://billing.test/p/" + req.CustomerID}, nil
}

func (m *MockProvider) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockProvider) CheckoutRequests() []providers.CheckoutRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.CheckoutRequest(nil), m.checkouts...)
}

func (m *MockProvider) PortalRequests() []providers.PortalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.PortalRequest(nil), m.portals...)
}

// --- Fulfillment Handler Mock ---

// FulfillmentCall records one handler invocation.
type FulfillmentCall struct {
	UserID  string
	Session billing.CheckoutSession
}

// MockFulfillmentHandler records every call and returns Err.
type MockFulfillmentHandler struct {
	mu    sync.Mutex
	calls []FulfillmentCall

	Err error
}

func (m *MockFulfillmentHandler) Fulfill(_ context.Context, userID string, session billing.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, FulfillmentCall{UserID: userID, Session: session})
	return m.Err
}

func (m *MockFulfillmentHandler) Calls() []FulfillmentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FulfillmentCall(nil), m.calls...)
}
