package models

import (
	"encoding/json"
	"time"
)

// Payment is an entry in the append-only tip ledger. PaymentIntentID is the
// idempotency key: at most one row exists per intent.
type Payment struct {
	ID                string    `json:"id" db:"id"`
	PaymentIntentID   string    `json:"paymentIntentId" db:"payment_intent_id"`
	CheckoutSessionID *string   `json:"checkoutSessionId" db:"checkout_session_id"`
	Amount            int64     `json:"amount" db:"amount"` // minor currency units
	Currency          string    `json:"currency" db:"currency"`
	Status            string    `json:"status" db:"status"`
	RecipientID       string    `json:"recipientId" db:"recipient_id"`
	PayerEmail        *string   `json:"payerEmail" db:"payer_email"`
	PlatformFee       *int64    `json:"platformFee" db:"platform_fee"`
	NetAmount         *int64    `json:"netAmount" db:"net_amount"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	// EventPublished reports a payment_events row; it is not a payments column.
	EventPublished bool `json:"-" db:"event_published"`
}

const PaymentStatusPaid = "paid"

type CheckoutRequest struct {
	// Amount is a decimal in major units, sent either as a JSON number or string.
	Amount          json.RawMessage `json:"amount"`
	RecipientHandle string          `json:"recipientHandle"`
}

type CheckoutResponse struct {
	CheckoutSessionID string `json:"checkoutSessionId"`
	URL               string `json:"url,omitempty"`
}

// PaymentRecorded is published once a payment has been written to the ledger.
type PaymentRecorded struct {
	PaymentID       string    `json:"paymentId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	RecipientID     string    `json:"recipientId"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	PlatformFee     *int64    `json:"platformFee,omitempty"`
	NetAmount       *int64    `json:"netAmount,omitempty"`
	PayerEmail      *string   `json:"payerEmail,omitempty"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// PaymentSummary is the recipient's view of the tips they received.
type PaymentSummary struct {
	Payments       []Payment        `json:"payments"`
	TotalsReceived map[string]int64 `json:"totalsReceived"` // net amount per currency
}

type AccountStatus struct {
	PaymentAccountID   string `json:"paymentAccountId"`
	ChargesEnabled     bool   `json:"chargesEnabled"`
	PayoutsEnabled     bool   `json:"payoutsEnabled"`
	DetailsSubmitted   bool   `json:"detailsSubmitted"`
	OnboardingComplete bool   `json:"onboardingComplete"`
	DashboardURL       string `json:"dashboardUrl"`
}
