package fulfillment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/billingbridge/internal/domain/billing"
	"github.com/google/uuid"
)

// Record is what an app receives for one completed checkout.
type Record struct {
	ID             string            `json:"id"`
	App            string            `json:"app"`
	UserID         string            `json:"userId"`
	SessionID      string            `json:"sessionId"`
	CustomerID     string            `json:"customerId,omitempty"`
	CustomerEmail  string            `json:"customerEmail,omitempty"`
	SubscriptionID string            `json:"subscriptionId,omitempty"`
	AmountTotal    int64             `json:"amountTotal"`
	Currency       string            `json:"currency,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func NewRecord(app, userID string, s billing.CheckoutSession) Record {
	return Record{
		ID:             uuid.New().String(),
		App:            app,
		UserID:         userID,
		SessionID:      s.ID,
		CustomerID:     s.CustomerID,
		CustomerEmail:  s.CustomerEmail,
		SubscriptionID: s.SubscriptionID,
		AmountTotal:    s.AmountTotal,
		Currency:       s.Currency,
		Metadata:       s.Metadata,
		CreatedAt:      time.Now().UTC(),
	}
}

func (r Record) Encode() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode fulfillment %s: %w", r.ID, err)
	}
	return b, nil
}

func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("decode fulfillment: %w", err)
	}
	if r.ID == "" || r.App == "" || r.UserID == "" {
		return Record{}, fmt.Errorf("decode fulfillment: id, app and userId are required")
	}
	return r, nil
}
