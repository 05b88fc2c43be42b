package controller

import (
	"github.com/cassiomorais/billingbridge/internal/domain/billing"
)

// --- Request DTOs ---

// CreateCheckoutRequest holds the input for starting a checkout. UserID is
// ignored when the caller is authenticated.
type CreateCheckoutRequest struct {
	UserID     string `json:"userId"`
	PriceID    string `json:"priceId" validate:"required"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

// CreatePortalRequest holds the input for opening the customer portal.
type CreatePortalRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
	ReturnURL  string `json:"returnUrl" validate:"omitempty,url"`
}

// --- Response DTOs ---

// WebhookResponse acknowledges a verified webhook.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Type     string `json:"type"`
}

type ProductsResponse struct {
	App      string            `json:"app"`
	Products []billing.Product `json:"products"`
}

type CheckoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSessionResponse struct {
	URL string `json:"url"`
}

type ConnectionResponse struct {
	App string `json:"app"`
	billing.ConnectionStatus
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
