// Package payments implements tip checkout, webhook reconciliation and
// payment account onboarding on top of the payment gateway.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/gateway"
	"github.com/illegalcall/linkbio/internal/metrics"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/repository"
)

type RecipientFinder interface {
	GetByHandle(ctx context.Context, handle string) (*models.Profile, error)
}

type CheckoutConfig struct {
	FeeBasisPoints  int64
	MinChargeAmount int64
	Currency        string
	FrontendURL     string
	Metadata        MetadataKeys
}

type CheckoutService struct {
	recipients RecipientFinder
	gateway    gateway.Gateway
	cfg        CheckoutConfig
	logger     *slog.Logger
}

func NewCheckoutService(recipients RecipientFinder, gw gateway.Gateway, cfg CheckoutConfig, logger *slog.Logger) *CheckoutService {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &CheckoutService{recipients: recipients, gateway: gw, cfg: cfg, logger: logger}
}

type CheckoutResult struct {
	SessionID   string
	URL         string
	Amount      int64
	PlatformFee int64
	NetAmount   int64
}

// CreateCheckout opens a hosted checkout for a tip of amount (major units)
// to the creator behind recipientHandle. Nothing is persisted locally.
func (s *CheckoutService) CreateCheckout(ctx context.Context, amount, recipientHandle string) (*CheckoutResult, error) {
	res, err := s.createCheckout(ctx, amount, recipientHandle)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			metrics.CheckoutRejections.WithLabelValues(appErr.Code).Inc()
		}
		return nil, err
	}
	metrics.CheckoutSessions.Inc()
	return res, nil
}

func (s *CheckoutService) createCheckout(ctx context.Context, amount, recipientHandle string) (*CheckoutResult, error) {
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidAmount, "Amount must be a positive decimal number", err)
	}
	if minor <= 0 || minor < s.cfg.MinChargeAmount {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidAmount,
			fmt.Sprintf("Amount must be at least %s", formatMinor(s.cfg.MinChargeAmount)))
	}

	recipient, err := s.resolveRecipient(ctx, recipientHandle)
	if err != nil {
		return nil, err
	}
	if !recipient.CanReceivePayments() {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeRecipientNotPaymentReady,
			"Recipient is not set up to receive payments")
	}

	fee := PlatformFee(minor, s.cfg.FeeBasisPoints)
	net := minor - fee
	if net < s.cfg.MinChargeAmount {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeAmountTooSmallAfterFee,
			fmt.Sprintf("Amount after the platform fee must be at least %s", formatMinor(s.cfg.MinChargeAmount)))
	}

	name := recipient.Username
	if recipient.DisplayName != nil && *recipient.DisplayName != "" {
		name = *recipient.DisplayName
	}

	keys := s.cfg.Metadata
	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		Amount:             minor,
		ApplicationFee:     fee,
		Currency:           s.cfg.Currency,
		ProductName:        "Support for " + name,
		DestinationAccount: *recipient.PaymentAccountID,
		SuccessURL: s.cfg.FrontendURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}&recipient=" +
			url.QueryEscape(recipient.Username),
		CancelURL: s.cfg.FrontendURL + "/" + url.PathEscape(recipient.Username) + "?payment_cancelled=true",
		Metadata: map[string]string{
			keys.RecipientID:     recipient.ID,
			keys.RecipientHandle: recipient.Username,
			keys.PlatformFee:     strconv.FormatInt(fee, 10),
			keys.TotalAmount:     strconv.FormatInt(minor, 10),
		},
	})
	if err != nil {
		s.logger.Error("Checkout session creation failed", "recipient", recipient.Username, "error", err)
		return nil, apperrors.Wrap(apperrors.KindGateway, apperrors.CodeGateway, "Payment session creation failed", err)
	}

	s.logger.Info("Checkout session ready",
		"session_id", session.ID,
		"recipient", recipient.Username,
		"amount", minor,
		"fee", fee)

	return &CheckoutResult{
		SessionID:   session.ID,
		URL:         session.URL,
		Amount:      minor,
		PlatformFee: fee,
		NetAmount:   net,
	}, nil
}

func (s *CheckoutService) resolveRecipient(ctx context.Context, handle string) (*models.Profile, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeRecipientNotFound, "Recipient not found")
	}
	recipient, err := s.recipients.GetByHandle(ctx, handle)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeRecipientNotFound, "Recipient not found")
	}
	if err != nil {
		return nil, apperrors.Persistence("Failed to look up recipient", err)
	}
	return recipient, nil
}

func formatMinor(v int64) string {
	return fmt.Sprintf("%d.%02d", v/minorUnitsPerMajor, v%minorUnitsPerMajor)
}
