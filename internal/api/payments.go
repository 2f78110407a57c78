package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/middleware"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/payments"
)

const (
	signatureHeader = "Stripe-Signature"

	defaultReceivedLimit = 50
	maxReceivedLimit     = 200
)

func (s *Server) handleCreateCheckout(c *fiber.Ctx) error {
	var req models.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request body")
	}

	amount, err := payments.AmountText(req.Amount)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidAmount, "Invalid amount.", err)
	}

	res, err := s.checkout.CreateCheckout(c.UserContext(), amount, req.RecipientHandle)
	if err != nil {
		return err
	}
	return c.JSON(models.CheckoutResponse{CheckoutSessionID: res.SessionID, URL: res.URL})
}

// handleWebhook passes the untouched request body to the reconciler; the
// signature covers the exact bytes the gateway sent.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	outcome, err := s.webhooks.Handle(c.UserContext(), c.Body(), c.Get(signatureHeader))
	if err != nil {
		return err
	}
	return c.JSON(models.WebhookAck{Received: true, Status: string(outcome)})
}

func (s *Server) handleConnectOnboard(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}

	email := middleware.Identity(c).Email
	if email == "" && profile.Email != nil {
		email = *profile.Email
	}

	url, err := s.connect.Onboard(c.UserContext(), profile, email)
	if err != nil {
		return err
	}
	return c.JSON(models.URLResponse{URL: url})
}

func (s *Server) handleConnectStatus(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}

	status, err := s.connect.Status(c.UserContext(), profile)
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// handleListReceived returns the caller's most recent tips and the net total
// received per currency across them.
func (s *Server) handleListReceived(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", defaultReceivedLimit)
	if limit <= 0 || limit > maxReceivedLimit {
		return apperrors.Validation("limit must be between 1 and 200")
	}

	list, err := s.payments.ListByRecipient(c.UserContext(), profile.ID, limit)
	if err != nil {
		return apperrors.Persistence("Failed to fetch payments", err)
	}

	summary := models.PaymentSummary{Payments: list, TotalsReceived: map[string]int64{}}
	for _, p := range list {
		net := p.Amount
		if p.NetAmount != nil {
			net = *p.NetAmount
		}
		summary.TotalsReceived[p.Currency] += net
	}
	return c.JSON(summary)
}
