package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/cassiomorais/billingbridge/internal/billing"
	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/cassiomorais/billingbridge/internal/providers"
	"github.com/go-chi/chi/v5"
)

// HandlerFactory returns the fulfillment handler for an app.
type HandlerFactory func(app string) billing.FulfillmentHandler

type WebhookController struct {
	registry  *billing.Registry
	handlers  HandlerFactory
	bodyLimit int64
}

func NewWebhookController(registry *billing.Registry, handlers HandlerFactory, bodyLimit int64) *WebhookController {
	return &WebhookController{registry: registry, handlers: handlers, bodyLimit: bodyLimit}
}

// Receive verifies a provider webhook and runs fulfillment. A non-2xx answer
// makes the provider redeliver the event later.
func (h *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	svc, err := h.registry.Get(chi.URLParam(r, "app"))
	if err != nil {
		writeError(w, err)
		return
	}

	// The signature covers the exact bytes, so the body is read raw.
	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large", Code: "payload_too_large"})
			return
		}
		writeError(w, domainErrors.NewValidationError("body", "unreadable request body"))
		return
	}

	event, err := svc.HandleWebhook(r.Context(), payload, r.Header.Get(providers.StripeSignatureHeader), h.handlers(svc.AppName()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Type: event.Type})
}
