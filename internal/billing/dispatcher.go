package billing

import (
	"context"

	billingDomain "github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

const skipReasonMissingUserID = "missing_user_id"

// FulfillmentHandler grants the user whatever the completed checkout paid
// for. It may be called more than once for the same session when the
// provider redelivers an event.
type FulfillmentHandler interface {
	Fulfill(ctx context.Context, userID string, session billingDomain.CheckoutSession) error
}

// FulfillmentHandlerFunc adapts a function to FulfillmentHandler.
type FulfillmentHandlerFunc func(ctx context.Context, userID string, session billingDomain.CheckoutSession) error

func (f FulfillmentHandlerFunc) Fulfill(ctx context.Context, userID string, session billingDomain.CheckoutSession) error {
	return f(ctx, userID, session)
}

// Dispatcher routes verified events to a fulfillment handler.
type Dispatcher struct {
	app     string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewDispatcher(app string, logger zerolog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{app: app, logger: logger, metrics: metrics}
}

// Dispatch calls handler once for a completed checkout carrying a userId and
// returns event unchanged. Sessions without a userId are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, event *billingDomain.Event, handler FulfillmentHandler) (*billingDomain.Event, error) {
	if event == nil || event.Kind != billingDomain.EventKindCheckoutCompleted || event.Checkout == nil {
		return event, nil
	}
	session := *event.Checkout

	userID, ok := session.UserID()
	if !ok {
		d.logger.Warn().
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Msg("completed checkout has no userId, skipping fulfillment")
		if d.metrics != nil {
			d.metrics.FulfillmentsSkipped.WithLabelValues(d.app, skipReasonMissingUserID).Inc()
		}
		return event, nil
	}

	if handler == nil {
		return event, domainErrors.NewValidationError("handler", "is required to fulfill a completed checkout")
	}

	if err := handler.Fulfill(ctx, userID, session); err != nil {
		d.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Str("user_id", userID).
			Msg("fulfillment handler failed")
		d.count("failed")
		return event, &domainErrors.FulfillmentHandlerError{UserID: userID, SessionID: session.ID, Err: err}
	}

	d.logger.Info().
		Str("event_id", event.ID).
		Str("session_id", session.ID).
		Str("user_id", userID).
		Msg("fulfillment dispatched")
	d.count("succeeded")
	return event, nil
}

func (d *Dispatcher) count(status string) {
	if d.metrics != nil {
		d.metrics.FulfillmentsTotal.WithLabelValues(d.app, status).Inc()
	}
}
