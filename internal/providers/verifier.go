package providers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeSignatureHeader is the request header carrying the webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// StripeVerifier checks Stripe webhook signatures (timestamped HMAC-SHA256,
// constant-time compare) and rebuilds the typed event. It holds no mutable
// state, so the same payload always verifies the same way.
type StripeVerifier struct {
	tolerance time.Duration
}

// NewStripeVerifier returns a verifier rejecting signatures older than
// tolerance. A zero tolerance uses Stripe's default of five minutes.
func NewStripeVerifier(tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeVerifier{tolerance: tolerance}
}

// Verify validates payload against header using secret. payload must be the
// exact bytes received on the wire.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) (*billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance: v.tolerance,
		// Version drift is reported by the caller, it does not make a
		// correctly signed payload forged.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &domainErrors.SignatureVerificationError{Err: err}
	}

	out := &billing.Event{
		ID:         event.ID,
		Type:       string(event.Type),
		Kind:       billing.EventKindOther,
		APIVersion: event.APIVersion,
		Created:    time.Unix(event.Created, 0).UTC(),
		Livemode:   event.Livemode,
	}
	if event.Data != nil {
		out.Raw = event.Data.Raw
	}

	if out.Type == billing.EventTypeCheckoutSessionCompleted {
		if len(out.Raw) == 0 {
			return nil, &domainErrors.SignatureVerificationError{Err: fmt.Errorf("event %s has no data object", event.ID)}
		}
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(out.Raw, &sess); err != nil {
			return nil, &domainErrors.SignatureVerificationError{Err: fmt.Errorf("decode checkout session: %w", err)}
		}
		out.Kind = billing.EventKindCheckoutCompleted
		out.Checkout = toCheckoutSession(&sess)
	}

	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *billing.CheckoutSession {
	out := &billing.CheckoutSession{
		ID:                s.ID,
		ClientReferenceID: s.ClientReferenceID,
		CustomerEmail:     s.CustomerEmail,
		Mode:              string(s.Mode),
		PaymentStatus:     string(s.PaymentStatus),
		AmountTotal:       s.AmountTotal,
		Currency:          string(s.Currency),
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}
