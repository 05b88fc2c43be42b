package fulfillment

import (
	"context"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
)

// Publisher appends encoded records to the fulfillment stream.
type Publisher interface {
	PublishFulfillment(ctx context.Context, id, app string, payload []byte) error
}

// StreamHandler is the API's fulfillment handler: it hands the checkout over
// to the worker through the stream. A publish error fails the webhook so the
// provider redelivers it.
type StreamHandler struct {
	app string
	pub Publisher
}

func NewStreamHandler(app string, pub Publisher) *StreamHandler {
	return &StreamHandler{app: app, pub: pub}
}

func (h *StreamHandler) Fulfill(ctx context.Context, userID string, session billing.CheckoutSession) error {
	rec := NewRecord(h.app, userID, session)
	payload, err := rec.Encode()
	if err != nil {
		return err
	}
	return h.pub.PublishFulfillment(ctx, rec.ID, rec.App, payload)
}
