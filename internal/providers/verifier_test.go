package providers

import (
	"testing"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

const checkoutCompletedPayload = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2025-03-31.basil",
  "created": 1700000000,
  "livemode": false,
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_1",
      "object": "checkout.session",
      "customer": "cus_1",
      "subscription": "sub_1",
      "mode": "subscription",
      "payment_status": "paid",
      "amount_total": 2599,
      "currency": "usd",
      "metadata": {"userId": "u1"}
    }
  }
}`

const invoicePaidPayload = `{
  "id": "evt_2",
  "object": "event",
  "api_version": "2025-03-31.basil",
  "created": 1700000000,
  "type": "invoice.paid",
  "data": {"object": {"id": "in_1", "object": "invoice"}}
}`

func sign(t *testing.T, payload, secret string, ts time.Time) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: ts,
	})
	return signed.Header
}

func TestStripeVerifier_Verify_CheckoutCompleted(t *testing.T) {
	v := NewStripeVerifier(0)
	header := sign(t, checkoutCompletedPayload, testSecret, time.Now())

	event, err := v.Verify([]byte(checkoutCompletedPayload), header, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, billing.EventTypeCheckoutSessionCompleted, event.Type)
	assert.Equal(t, billing.EventKindCheckoutCompleted, event.Kind)
	assert.Equal(t, "2025-03-31.basil", event.APIVersion)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), event.Created)

	require.NotNil(t, event.Checkout)
	assert.Equal(t, "cs_1", event.Checkout.ID)
	assert.Equal(t, "cus_1", event.Checkout.CustomerID)
	assert.Equal(t, "sub_1", event.Checkout.SubscriptionID)
	assert.Equal(t, int64(2599), event.Checkout.AmountTotal)
	userID, ok := event.Checkout.UserID()
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
}

func TestStripeVerifier_Verify_OtherEvent(t *testing.T) {
	v := NewStripeVerifier(0)
	header := sign(t, invoicePaidPayload, testSecret, time.Now())

	event, err := v.Verify([]byte(invoicePaidPayload), header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", event.Type)
	assert.Equal(t, billing.EventKindOther, event.Kind)
	assert.Nil(t, event.Checkout)
	assert.NotEmpty(t, event.Raw)
}

func TestStripeVerifier_Verify_Rejects(t *testing.T) {
	fresh := sign(t, checkoutCompletedPayload, testSecret, time.Now())

	tests := []struct {
		name    string
		payload string
		header  string
		secret  string
	}{
		{
			name:    "wrong secret",
			payload: checkoutCompletedPayload,
			header:  fresh,
			secret:  "whsec_other",
		},
		{
			name:    "tampered body",
			payload: checkoutCompletedPayload[:len(checkoutCompletedPayload)-1] + " }",
			header:  fresh,
			secret:  testSecret,
		},
		{
			name:    "stale timestamp",
			payload: checkoutCompletedPayload,
			header:  sign(t, checkoutCompletedPayload, testSecret, time.Now().Add(-10*time.Minute)),
			secret:  testSecret,
		},
		{
			name:    "missing header",
			payload: checkoutCompletedPayload,
			header:  "",
			secret:  testSecret,
		},
	}

	v := NewStripeVerifier(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := v.Verify([]byte(tt.payload), tt.header, tt.secret)
			assert.Nil(t, event)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainErrors.ErrSignatureVerification)

			var sigErr *domainErrors.SignatureVerificationError
			assert.ErrorAs(t, err, &sigErr)
		})
	}
}

func TestStripeVerifier_Verify_CustomTolerance(t *testing.T) {
	header := sign(t, invoicePaidPayload, testSecret, time.Now().Add(-10*time.Minute))

	_, err := NewStripeVerifier(time.Hour).Verify([]byte(invoicePaidPayload), header, testSecret)
	assert.NoError(t, err)
}

func TestStripeVerifier_Verify_SameInputSameResult(t *testing.T) {
	v := NewStripeVerifier(0)
	header := sign(t, checkoutCompletedPayload, testSecret, time.Now())

	first, err := v.Verify([]byte(checkoutCompletedPayload), header, testSecret)
	require.NoError(t, err)
	second, err := v.Verify([]byte(checkoutCompletedPayload), header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = v.Verify([]byte(checkoutCompletedPayload), header, "whsec_other")
	assert.Error(t, err)
	_, err = v.Verify([]byte(checkoutCompletedPayload), header, "whsec_other")
	assert.Error(t, err)
}
