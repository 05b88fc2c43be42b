package billing

import (
	"encoding/json"
	"time"
)

// MetadataUserID is the metadata key that carries the application user id from
// checkout creation to the completion webhook.
const MetadataUserID = "userId"

// MetadataAppName tags provider objects with the app that created them.
const MetadataAppName = "appName"

const EventTypeCheckoutSessionCompleted = "checkout.session.completed"

type EventKind string

const (
	EventKindCheckoutCompleted EventKind = "checkout_completed"
	EventKindOther             EventKind = "other"
)

// Event is a verified provider event. Checkout is only set when Kind is
// EventKindCheckoutCompleted.
type Event struct {
	ID         string
	Type       string
	Kind       EventKind
	APIVersion string
	Created    time.Time
	Livemode   bool
	Raw        json.RawMessage
	Checkout   *CheckoutSession
}

// CheckoutSession is the subset of a completed checkout session the adapter
// and its fulfillment handlers care about.
type CheckoutSession struct {
	ID                string            `json:"id"`
	CustomerID        string            `json:"customer_id,omitempty"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	SubscriptionID    string            `json:"subscription_id,omitempty"`
	ClientReferenceID string            `json:"client_reference_id,omitempty"`
	Mode              string            `json:"mode,omitempty"`
	PaymentStatus     string            `json:"payment_status,omitempty"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency,omitempty"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID returns the user id carried in the session metadata, if any.
func (s CheckoutSession) UserID() (string, bool) {
	id, ok := s.Metadata[MetadataUserID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Price is a catalog price in minor units.
type Price struct {
	ID         string
	UnitAmount int64
	Currency   string
}

// CatalogEntry is a product as reported by the provider.
type CatalogEntry struct {
	ID           string
	Name         string
	Description  string
	Active       bool
	DefaultPrice *Price
}

// Product is a catalog entry shaped for application use. Price is in major units.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	PriceID     string  `json:"price_id"`
	Currency    string  `json:"currency"`
}

type CheckoutSessionResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSession struct {
	URL string `json:"url"`
}

type ConnectionState string

const (
	ConnectionConnected ConnectionState = "connected"
	ConnectionError     ConnectionState = "error"
)

// ConnectionStatus is the result of a connectivity probe. Failures are carried
// in Message rather than returned as errors.
type ConnectionStatus struct {
	Status     ConnectionState `json:"status"`
	APIVersion string          `json:"api_version,omitempty"`
	AppVersion string          `json:"app_version,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// MinorToMajor converts an integer minor-unit amount into major units.
func MinorToMajor(amount int64) float64 {
	return float64(amount) / 100
}
