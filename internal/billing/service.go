package billing

import (
	"context"
	"strings"
	"time"

	billingDomain "github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	"github.com/cassiomorais/billingbridge/internal/providers"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cassiomorais/billingbridge/internal/billing"

// Verifier authenticates a raw webhook body against its signature header.
type Verifier interface {
	Verify(payload []byte, header string, secret string) (*billingDomain.Event, error)
}

// Service is the billing adapter for a single app.
type Service struct {
	cfg        ServiceConfig
	provider   providers.Provider
	verifier   Verifier
	dispatcher *Dispatcher
	logger     zerolog.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New validates cfg and returns a ready Service. No Service is returned
// when the configuration is invalid.
func New(cfg ServiceConfig, provider providers.Provider, verifier Verifier, opts ...Option) (*Service, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		provider: provider,
		verifier: verifier,
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = observability.WithFields(s.logger, "app", cfg.AppName)
	s.dispatcher = NewDispatcher(cfg.AppName, s.logger, s.metrics)

	s.logger.Info().
		Str("app_version", cfg.AppVersion).
		Str("api_version", cfg.RequiredProviderAPIVersion).
		Str("currency", cfg.currency()).
		Str("provider", provider.Name()).
		Msg("billing adapter initialized")

	return s, nil
}

func (s *Service) AppName() string { return s.cfg.AppName }

func (s *Service) AppVersion() string { return s.cfg.AppVersion }

func (s *Service) Currency() string { return s.cfg.currency() }

// FetchActiveProducts lists purchasable products. Products without a default
// price are left out.
func (s *Service) FetchActiveProducts(ctx context.Context) ([]billingDomain.Product, error) {
	ctx, span := s.start(ctx, "FetchActiveProducts")
	defer span.End()

	start := time.Now()
	entries, err := s.provider.ListActiveProducts(ctx)
	s.observe("list_products", start, err)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	products := make([]billingDomain.Product, 0, len(entries))
	for _, e := range entries {
		if e.DefaultPrice == nil {
			continue
		}
		products = append(products, s.toProduct(e))
	}
	span.SetAttributes(attribute.Int("billing.products", len(products)))
	return products, nil
}

func (s *Service) toProduct(e billingDomain.CatalogEntry) billingDomain.Product {
	p := billingDomain.Product{
		ID:       e.ID,
		Name:     e.Name,
		Price:    billingDomain.MinorToMajor(e.DefaultPrice.UnitAmount),
		PriceID:  e.DefaultPrice.ID,
		Currency: strings.ToLower(e.DefaultPrice.Currency),
	}
	if p.Currency == "" {
		p.Currency = s.cfg.currency()
	}
	if e.Description != "" {
		desc := e.Description
		p.Description = &desc
	}
	return p
}

// CreateCheckoutSession starts a subscription checkout for userID. The user
// id is written to the session and to the subscription it creates, which is
// how a later webhook finds its way back to the user.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, priceID, successURL, cancelURL string) (*billingDomain.CheckoutSessionResult, error) {
	if userID == "" {
		return nil, domainErrors.NewValidationError("userId", "is required")
	}
	if priceID == "" {
		return nil, domainErrors.NewValidationError("priceId", "is required")
	}

	ctx, span := s.start(ctx, "CreateCheckoutSession", attribute.String("billing.price_id", priceID))
	defer span.End()

	metadata := map[string]string{
		billingDomain.MetadataUserID:  userID,
		billingDomain.MetadataAppName: s.cfg.AppName,
	}

	start := time.Now()
	res, err := s.provider.CreateCheckoutSession(ctx, providers.CheckoutRequest{
		PriceID:              priceID,
		SuccessURL:           successURL,
		CancelURL:            cancelURL,
		ClientReferenceID:    userID,
		Metadata:             metadata,
		SubscriptionMetadata: metadata,
	})
	s.observe("create_checkout_session", start, err)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	s.logger.Info().
		Str("session_id", res.ID).
		Str("user_id", userID).
		Str("price_id", priceID).
		Msg("checkout session created")
	return res, nil
}

// HandleWebhook verifies rawBody and dispatches completed checkouts to
// handler. rawBody must be the unmodified request body.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string, handler FulfillmentHandler) (*billingDomain.Event, error) {
	ctx, span := s.start(ctx, "HandleWebhook")
	defer span.End()

	event, err := s.verifier.Verify(rawBody, signatureHeader, s.cfg.WebhookSigningSecret)
	if err != nil {
		s.logger.Warn().Err(err).Msg("webhook rejected")
		s.countWebhook("unknown", "invalid_signature")
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("billing.event_id", event.ID),
		attribute.String("billing.event_type", event.Type),
	)

	if event.APIVersion != "" && event.APIVersion != s.cfg.RequiredProviderAPIVersion {
		s.logger.Warn().
			Str("event_id", event.ID).
			Str("event_api_version", event.APIVersion).
			Str("required_api_version", s.cfg.RequiredProviderAPIVersion).
			Msg("webhook api version differs from configured version")
	}

	event, err = s.dispatcher.Dispatch(ctx, event, handler)
	if err != nil {
		s.countWebhook(event.Type, "handler_failed")
		fail(span, err)
		return event, err
	}
	s.countWebhook(event.Type, "ok")
	return event, nil
}

// CreatePortalSession returns a provider-hosted page where the customer
// manages their subscription.
func (s *Service) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*billingDomain.PortalSession, error) {
	if customerID == "" {
		return nil, domainErrors.NewValidationError("customerId", "is required")
	}

	ctx, span := s.start(ctx, "CreatePortalSession")
	defer span.End()

	start := time.Now()
	res, err := s.provider.CreatePortalSession(ctx, providers.PortalRequest{
		CustomerID: customerID,
		ReturnURL:  returnURL,
	})
	s.observe("create_portal_session", start, err)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return res, nil
}

// VerifyConnection checks the credentials against the provider. Failures are
// reported in the returned status, never as an error.
func (s *Service) VerifyConnection(ctx context.Context) billingDomain.ConnectionStatus {
	ctx, span := s.start(ctx, "VerifyConnection")
	defer span.End()

	start := time.Now()
	err := s.provider.Ping(ctx)
	s.observe("retrieve_balance", start, err)
	if err != nil {
		fail(span, err)
		s.logger.Error().Err(err).Msg("provider connection check failed")
		return billingDomain.ConnectionStatus{
			Status:  billingDomain.ConnectionError,
			Message: err.Error(),
		}
	}

	return billingDomain.ConnectionStatus{
		Status:     billingDomain.ConnectionConnected,
		APIVersion: s.cfg.RequiredProviderAPIVersion,
		AppVersion: s.cfg.AppVersion,
	}
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("billing.app", s.cfg.AppName))
	return s.tracer.Start(ctx, "billing."+op, trace.WithAttributes(attrs...))
}

func (s *Service) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ProviderRequestsTotal.WithLabelValues(s.cfg.AppName, op, status).Inc()
	s.metrics.ProviderRequestDuration.WithLabelValues(s.cfg.AppName, op).Observe(time.Since(start).Seconds())
}

func (s *Service) countWebhook(eventType, result string) {
	if s.metrics != nil {
		s.metrics.WebhooksTotal.WithLabelValues(s.cfg.AppName, eventType, result).Inc()
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
