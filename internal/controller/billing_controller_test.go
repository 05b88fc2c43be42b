package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/cassiomorais/billingbridge/internal/middleware"
	"github.com/cassiomorais/billingbridge/internal/providers"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "controller-test-secret-0123456789abcdef"

func bearer(t *testing.T, userID string, apps ...string) http.Header {
	t.Helper()
	claims := middleware.Claims{UserID: userID, Apps: apps}
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestBillingController_ListProducts(t *testing.T) {
	f := newRouterFixture(t)
	f.provider.ListActiveProductsFunc = func(ctx context.Context) ([]billing.CatalogEntry, error) {
		return []billing.CatalogEntry{
			{ID: "prod_pro", Name: "Pro", Active: true, DefaultPrice: &billing.Price{ID: "price_pro", UnitAmount: 2599, Currency: "usd"}},
			{ID: "prod_free", Name: "Free", Active: true},
		}, nil
	}

	w := f.do(t, http.MethodGet, "/api/v1/apps/acme/products", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[ProductsResponse](t, w)
	assert.Equal(t, "acme", resp.App)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, 25.99, resp.Products[0].Price)
	assert.Equal(t, "price_pro", resp.Products[0].PriceID)
}

func TestBillingController_CreateCheckoutSession(t *testing.T) {
	tests := []struct {
		name        string
		body        CreateCheckoutRequest
		wantSuccess string
		wantCancel  string
	}{
		{
			name:        "app default urls",
			body:        CreateCheckoutRequest{UserID: "u42", PriceID: "price_pro"},
			wantSuccess: "https://acme.test/success",
			wantCancel:  "https://acme.test/cancel",
		},
		{
			name: "explicit urls",
			body: CreateCheckoutRequest{
				UserID:     "u42",
				PriceID:    "price_pro",
				SuccessURL: "https://acme.test/welcome",
				CancelURL:  "https://acme.test/pricing",
			},
			wantSuccess: "https://acme.test/welcome",
			wantCancel:  "https://acme.test/pricing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)

			w := f.do(t, http.MethodPost, "/api/v1/apps/acme/checkout-sessions", tt.body, nil)

			require.Equal(t, http.StatusCreated, w.Code)
			resp := decodeBody[CheckoutSessionResponse](t, w)
			assert.Equal(t, "cs_test_1", resp.ID)
			assert.Equal(t, "https://checkout.test/cs_test_1", resp.URL)

			reqs := f.provider.CheckoutRequests()
			require.Len(t, reqs, 1)
			assert.Equal(t, "u42", reqs[0].Metadata[billing.MetadataUserID])
			assert.Equal(t, "u42", reqs[0].SubscriptionMetadata[billing.MetadataUserID])
			assert.Equal(t, tt.wantSuccess, reqs[0].SuccessURL)
			assert.Equal(t, tt.wantCancel, reqs[0].CancelURL)
		})
	}
}

func TestBillingController_CreateCheckoutSession_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing price", CreateCheckoutRequest{UserID: "u1"}},
		{"missing user", CreateCheckoutRequest{PriceID: "price_pro"}},
		{"bad success url", CreateCheckoutRequest{UserID: "u1", PriceID: "price_pro", SuccessURL: "not a url"}},
		{"invalid json", []byte(`{"priceId":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)

			w := f.do(t, http.MethodPost, "/api/v1/apps/acme/checkout-sessions", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", decodeBody[ErrorResponse](t, w).Code)
			assert.Empty(t, f.provider.CheckoutRequests())
		})
	}
}

func TestBillingController_CreateCheckoutSession_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "provider rejected",
			err:        domainErrors.NewProviderRequestError("create_checkout_session", errors.New("no such price")),
			wantStatus: http.StatusBadGateway,
			wantCode:   "provider_error",
		},
		{
			name:       "breaker open",
			err:        domainErrors.NewProviderRequestError("create_checkout_session", fmt.Errorf("%w: open", domainErrors.ErrProviderUnavailable)),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "provider_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.provider.CreateCheckoutSessionFunc = func(ctx context.Context, req providers.CheckoutRequest) (*billing.CheckoutSessionResult, error) {
				return nil, tt.err
			}

			w := f.do(t, http.MethodPost, "/api/v1/apps/acme/checkout-sessions", CreateCheckoutRequest{UserID: "u1", PriceID: "price_x"}, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeBody[ErrorResponse](t, w).Code)
		})
	}
}

func TestBillingController_Auth(t *testing.T) {
	t.Run("token required", func(t *testing.T) {
		f := newRouterFixture(t, withJWTSecret(testJWTSecret))

		w := f.do(t, http.MethodGet, "/api/v1/apps/acme/products", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token user overrides body", func(t *testing.T) {
		f := newRouterFixture(t, withJWTSecret(testJWTSecret))

		w := f.do(t, http.MethodPost, "/api/v1/apps/acme/checkout-sessions",
			CreateCheckoutRequest{UserID: "someone_else", PriceID: "price_pro"}, bearer(t, "u7"))

		require.Equal(t, http.StatusCreated, w.Code)
		reqs := f.provider.CheckoutRequests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "u7", reqs[0].Metadata[billing.MetadataUserID])
		assert.Equal(t, "u7", reqs[0].ClientReferenceID)
	})

	t.Run("token scoped to another app", func(t *testing.T) {
		f := newRouterFixture(t, withJWTSecret(testJWTSecret))

		w := f.do(t, http.MethodGet, "/api/v1/apps/acme/products", nil, bearer(t, "u7", "globex"))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("webhooks stay public", func(t *testing.T) {
		f := newRouterFixture(t, withJWTSecret(testJWTSecret))

		w := f.do(t, http.MethodPost, "/webhooks/acme", []byte(`{}`), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBillingController_UnknownApp(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/apps/initech/products", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "app_not_found", decodeBody[ErrorResponse](t, w).Code)
}

func TestBillingController_CreatePortalSession(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/apps/acme/portal-sessions", CreatePortalRequest{CustomerID: "cus_1"}, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://billing.test/p/cus_1", decodeBody[PortalSessionResponse](t, w).URL)

	reqs := f.provider.PortalRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://acme.test/success", reqs[0].ReturnURL)
}

func TestBillingController_CreatePortalSession_MissingCustomer(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/apps/acme/portal-sessions", CreatePortalRequest{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.provider.PortalRequests())
}

func TestBillingController_Connection(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		f := newRouterFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/apps/acme/connection", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[ConnectionResponse](t, w)
		assert.Equal(t, "acme", resp.App)
		assert.Equal(t, billing.ConnectionConnected, resp.Status)
		assert.Equal(t, "1.0.0", resp.AppVersion)
	})

	t.Run("error still answers 200", func(t *testing.T) {
		f := newRouterFixture(t)
		f.provider.PingFunc = func(ctx context.Context) error {
			return domainErrors.NewProviderRequestError("retrieve_balance", errors.New("invalid api key"))
		}

		w := f.do(t, http.MethodGet, "/api/v1/apps/acme/connection", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[ConnectionResponse](t, w)
		assert.Equal(t, billing.ConnectionError, resp.Status)
		assert.Contains(t, resp.Message, "invalid api key")
	})
}
