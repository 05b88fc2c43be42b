package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cassiomorais/billingbridge/internal/billing"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	"github.com/cassiomorais/billingbridge/internal/providers"
	"github.com/cassiomorais/billingbridge/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", p.err)
}

type routerFixture struct {
	provider *testutil.MockProvider
	handler  *testutil.MockFulfillmentHandler
	router   http.Handler
}

type fixtureOption func(*RouterDeps)

func withJWTSecret(secret string) fixtureOption {
	return func(d *RouterDeps) { d.JWTSecret = secret }
}

func withBodyLimit(n int64) fixtureOption {
	return func(d *RouterDeps) { d.BodyLimit = n }
}

func withRedis(p Pinger) fixtureOption {
	return func(d *RouterDeps) { d.Redis = p }
}

func newRouterFixture(t *testing.T, opts ...fixtureOption) *routerFixture {
	t.Helper()

	provider := testutil.NewMockProvider()
	svc, err := billing.New(billing.ServiceConfig{
		AppName:                    "acme",
		AppVersion:                 "1.0.0",
		APIKey:                     testutil.TestAPIKey,
		WebhookSigningSecret:       testutil.TestSigningSecret,
		RequiredProviderAPIVersion: testutil.TestAPIVersion,
	}, provider, providers.NewStripeVerifier(0))
	require.NoError(t, err)

	registry, err := billing.NewRegistry(svc)
	require.NoError(t, err)

	handler := &testutil.MockFulfillmentHandler{}
	deps := RouterDeps{
		Redis:    fakePinger{},
		Registry: registry,
		Handlers: func(app string) billing.FulfillmentHandler { return handler },
		AppURLs: map[string]AppURLs{
			"acme": {SuccessURL: "https://acme.test/success", CancelURL: "https://acme.test/cancel"},
		},
		Metrics:   observability.NewMetrics("test", prometheus.NewRegistry()),
		BodyLimit: 1 << 16,
	}
	for _, o := range opts {
		o(&deps)
	}

	return &routerFixture{provider: provider, handler: handler, router: NewRouter(deps)}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}
