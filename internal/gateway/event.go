package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventAccountUpdated    = "account.updated"

	PaymentStatusPaid = "paid"
)

// Event is a verified webhook event. Raw holds the event's data object.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Raw     json.RawMessage
}

// CompletedCheckout is the part of a checkout session the ledger cares about.
type CompletedCheckout struct {
	ID              string
	PaymentIntentID string
	PaymentStatus   string
	AmountTotal     *int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
}

type checkoutPayload struct {
	ID              string            `json:"id"`
	PaymentIntent   json.RawMessage   `json:"payment_intent"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     *int64            `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// CheckoutSession decodes the event object as a checkout session.
func (e *Event) CheckoutSession() (*CompletedCheckout, error) {
	var p checkoutPayload
	if err := json.Unmarshal(e.Raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	intentID, err := expandableID(p.PaymentIntent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payment_intent: %w", err)
	}

	email := p.CustomerEmail
	if p.CustomerDetails != nil && p.CustomerDetails.Email != "" {
		email = p.CustomerDetails.Email
	}

	return &CompletedCheckout{
		ID:              p.ID,
		PaymentIntentID: intentID,
		PaymentStatus:   p.PaymentStatus,
		AmountTotal:     p.AmountTotal,
		Currency:        p.Currency,
		CustomerEmail:   email,
		Metadata:        p.Metadata,
	}, nil
}

// Account decodes the event object as a connected account.
func (e *Event) Account() (*AccountState, error) {
	var a AccountState
	if err := json.Unmarshal(e.Raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &a, nil
}

// expandableID reads a field that is either an id string or an expanded
// object carrying an id.
func expandableID(raw json.RawMessage) (string, error) {
	field := gjson.ParseBytes(raw)
	switch {
	case !field.Exists() || field.Type == gjson.Null:
		return "", nil
	case field.Type == gjson.String:
		return field.String(), nil
	case field.IsObject():
		return field.Get("id").String(), nil
	default:
		return "", fmt.Errorf("unexpected %s value", field.Type)
	}
}
