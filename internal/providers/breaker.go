package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker placed in front of a provider.
type BreakerSettings struct {
	MinRequests   uint32
	FailureRatio  float64
	Interval      time.Duration
	Timeout       time.Duration
	OnStateChange func(name string, from, to gobreaker.State)
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
	}
}

// breakerProvider fails fast while the provider looks unhealthy. It never
// repeats a call.
type breakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

// WithCircuitBreaker decorates next with a breaker named name. Stripe 4xx
// answers count as successes for the breaker since they reflect the request,
// not the provider.
func WithCircuitBreaker(next Provider, name string, s BreakerSettings) Provider {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MinRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: s.OnStateChange,
	}
	return &breakerProvider{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *breakerProvider) Name() string { return b.next.Name() }

func (b *breakerProvider) ListActiveProducts(ctx context.Context) ([]billing.CatalogEntry, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.ListActiveProducts(ctx)
	})
	if err != nil {
		return nil, b.wrap("list_products", err)
	}
	entries, _ := res.([]billing.CatalogEntry)
	return entries, nil
}

func (b *breakerProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSessionResult, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.CreateCheckoutSession(ctx, req)
	})
	if err != nil {
		return nil, b.wrap("create_checkout_session", err)
	}
	return res.(*billing.CheckoutSessionResult), nil
}

func (b *breakerProvider) CreatePortalSession(ctx context.Context, req PortalRequest) (*billing.PortalSession, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.CreatePortalSession(ctx, req)
	})
	if err != nil {
		return nil, b.wrap("create_portal_session", err)
	}
	return res.(*billing.PortalSession), nil
}

func (b *breakerProvider) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Ping(ctx)
	})
	if err != nil {
		return b.wrap("retrieve_balance", err)
	}
	return nil
}

// wrap passes provider errors through untouched and turns breaker rejections
// into provider request errors.
func (b *breakerProvider) wrap(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domainErrors.NewProviderRequestError(op, fmt.Errorf("%w: %w", domainErrors.ErrProviderUnavailable, err))
	}
	return err
}
