package providers

import (
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
)

// AppProvider selects and configures the provider for one app.
type AppProvider struct {
	App       string
	Kind      string
	SecretKey string
	BaseURL   string
}

// Factory builds breaker-guarded providers per app. Each app gets its own
// breaker so one misbehaving account cannot trip the others.
type Factory struct {
	breaker BreakerSettings
}

func NewFactory(breaker BreakerSettings) *Factory {
	return &Factory{breaker: breaker}
}

func (f *Factory) New(p AppProvider) (Provider, error) {
	var base Provider
	switch p.Kind {
	case ProviderStripe, "":
		base = NewStripeProvider(StripeConfig{SecretKey: p.SecretKey, BaseURL: p.BaseURL})
	case ProviderMock:
		base = NewMockProvider(p.App, WithLatency(50*time.Millisecond))
	default:
		return nil, fmt.Errorf("app %q: unknown provider %q: %w", p.App, p.Kind, domainErrors.ErrProviderNotFound)
	}
	return WithCircuitBreaker(base, p.App, f.breaker), nil
}
