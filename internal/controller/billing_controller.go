package controller

import (
	"net/http"

	"github.com/cassiomorais/billingbridge/internal/billing"
	"github.com/cassiomorais/billingbridge/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// AppURLs are an app's default redirect targets.
type AppURLs struct {
	SuccessURL string
	CancelURL  string
}

type BillingController struct {
	registry *billing.Registry
	urls     map[string]AppURLs
}

func NewBillingController(registry *billing.Registry, urls map[string]AppURLs) *BillingController {
	return &BillingController{registry: registry, urls: urls}
}

func (h *BillingController) service(w http.ResponseWriter, r *http.Request) (*billing.Service, bool) {
	svc, err := h.registry.Get(chi.URLParam(r, "app"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return svc, true
}

func (h *BillingController) ListProducts(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	products, err := svc.FetchActiveProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProductsResponse{App: svc.AppName(), Products: products})
}

func (h *BillingController) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	var req CreateCheckoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// Authenticated user wins over the body.
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		req.UserID = userID
	}

	urls := h.urls[svc.AppName()]
	successURL := firstNonEmpty(req.SuccessURL, urls.SuccessURL)
	cancelURL := firstNonEmpty(req.CancelURL, urls.CancelURL)

	session, err := svc.CreateCheckoutSession(r.Context(), req.UserID, req.PriceID, successURL, cancelURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CheckoutSessionResponse{ID: session.ID, URL: session.URL})
}

func (h *BillingController) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	var req CreatePortalRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	returnURL := firstNonEmpty(req.ReturnURL, h.urls[svc.AppName()].SuccessURL)
	session, err := svc.CreatePortalSession(r.Context(), req.CustomerID, returnURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, PortalSessionResponse{URL: session.URL})
}

// Connection always answers 200; the status field says whether the
// credentials work.
func (h *BillingController) Connection(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ConnectionResponse{
		App:              svc.AppName(),
		ConnectionStatus: svc.VerifyConnection(r.Context()),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
