// Package gateway wraps the payment processor behind a small interface so the
// checkout and reconciliation logic can run against fakes.
package gateway

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook payload does not match its
// signature header.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreateConnectedAccount(ctx context.Context, req AccountRequest) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccount(ctx context.Context, accountID string) (*AccountState, error)
	ConstructEvent(payload []byte, signatureHeader string) (*Event, error)
}

// CheckoutRequest describes a hosted checkout for a single tip. Amounts are in
// minor currency units.
type CheckoutRequest struct {
	Amount             int64
	ApplicationFee     int64
	Currency           string
	ProductName        string
	DestinationAccount string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type AccountRequest struct {
	Email    string
	Country  string
	Metadata map[string]string
}

// AccountState is the processor's view of a connected account.
type AccountState struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// OnboardingComplete is true only when the account can both take charges and
// receive payouts with all details submitted.
func (a *AccountState) OnboardingComplete() bool {
	return a.ChargesEnabled && a.PayoutsEnabled && a.DetailsSubmitted
}
