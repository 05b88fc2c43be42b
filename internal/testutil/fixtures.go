package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	TestAPIKey        = "sk_test_51Fixture"
	TestSigningSecret = "whsec_fixture_secret"
	TestAPIVersion    = "2025-03-31.basil"
)

// NewEventPayload builds a Stripe event body of the given type wrapping object.
func NewEventPayload(t *testing.T, eventID, eventType string, object map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"api_version": TestAPIVersion,
		"created":     time.Now().Unix(),
		"livemode":    false,
		"type":        eventType,
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

// NewCheckoutCompletedPayload builds a checkout.session.completed event body.
// A nil metadata map leaves the session without metadata.
func NewCheckoutCompletedPayload(t *testing.T, sessionID string, metadata map[string]string) []byte {
	t.Helper()
	session := map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"customer":       "cus_fixture",
		"subscription":   "sub_fixture",
		"mode":           "subscription",
		"payment_status": "paid",
		"amount_total":   2599,
		"currency":       "usd",
	}
	if metadata != nil {
		session["metadata"] = metadata
	}
	return NewEventPayload(t, "evt_"+sessionID, billing.EventTypeCheckoutSessionCompleted, session)
}

// Sign returns a Stripe-Signature header for payload signed with secret now.
func Sign(payload []byte, secret string) string {
	return SignAt(payload, secret, time.Now())
}

func SignAt(payload []byte, secret string, ts time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
	}).Header
}
