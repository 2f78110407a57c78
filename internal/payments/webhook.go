package payments

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/events"
	"github.com/illegalcall/linkbio/internal/gateway"
	"github.com/illegalcall/linkbio/internal/metrics"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/repository"
)

// Outcome describes what a webhook delivery did. Every outcome is
// acknowledged to the gateway with a success response.
type Outcome string

const (
	OutcomeRecorded            Outcome = "recorded"
	OutcomeDuplicate           Outcome = "duplicate"
	OutcomeIgnored             Outcome = "ignored"
	OutcomeOnboardingUpdated   Outcome = "onboarding_updated"
	OutcomeOnboardingUnchanged Outcome = "onboarding_unchanged"
)

type EventVerifier interface {
	ConstructEvent(payload []byte, signatureHeader string) (*gateway.Event, error)
}

type PaymentLedger interface {
	Record(ctx context.Context, p *models.Payment) (repository.InsertResult, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*models.Payment, error)
	MarkPublished(ctx context.Context, paymentID string) error
}

type OnboardingStore interface {
	FindByPaymentAccount(ctx context.Context, accountID string) ([]models.Profile, error)
	SetOnboardingByAccount(ctx context.Context, accountID string, complete bool) (int64, error)
}

type ProfileInvalidator interface {
	Invalidate(ctx context.Context, usernames ...string) error
}

type ReconcilerConfig struct {
	Currency string
	Metadata MetadataKeys
}

// Reconciler applies verified webhook events to the payment ledger and the
// creators' onboarding flags.
type Reconciler struct {
	verifier  EventVerifier
	ledger    PaymentLedger
	profiles  OnboardingStore
	publisher events.Publisher
	cache     ProfileInvalidator
	cfg       ReconcilerConfig
	logger    *slog.Logger
}

// NewReconciler wires a reconciler. cache may be nil.
func NewReconciler(
	verifier EventVerifier,
	ledger PaymentLedger,
	profiles OnboardingStore,
	publisher events.Publisher,
	cache ProfileInvalidator,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *Reconciler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Reconciler{
		verifier:  verifier,
		ledger:    ledger,
		profiles:  profiles,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle processes one delivery. An error means the delivery must not be
// acknowledged: either the signature is bad (validation error, never
// redelivered successfully) or storage failed and the gateway should retry.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	evt, err := r.verifier.ConstructEvent(body, signature)
	if err != nil {
		r.logger.Warn("Webhook signature verification failed", "error", err)
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return "", apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidSignature, "Webhook signature verification failed", err)
	}

	logger := r.logger.With("event_id", evt.ID, "event_type", evt.Type)

	var outcome Outcome
	switch evt.Type {
	case gateway.EventCheckoutCompleted:
		outcome, err = r.checkoutCompleted(ctx, evt, logger)
	case gateway.EventAccountUpdated:
		outcome, err = r.accountUpdated(ctx, evt, logger)
	default:
		logger.Info("Unhandled webhook event")
		outcome = OutcomeIgnored
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(evt.Type, "error").Inc()
		return "", err
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, string(outcome)).Inc()
	return outcome, nil
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, evt *gateway.Event, logger *slog.Logger) (Outcome, error) {
	session, err := evt.CheckoutSession()
	if err != nil {
		logger.Error("Malformed checkout session", "error", err)
		return OutcomeIgnored, nil
	}
	logger = logger.With("session_id", session.ID, "payment_intent_id", session.PaymentIntentID)

	if session.PaymentStatus != gateway.PaymentStatusPaid {
		logger.Info("Checkout completed without payment", "payment_status", session.PaymentStatus)
		return OutcomeIgnored, nil
	}

	keys := r.cfg.Metadata
	recipientID := session.Metadata[keys.RecipientID]
	if session.PaymentIntentID == "" || recipientID == "" {
		logger.Error("Checkout session missing metadata or payment intent")
		return OutcomeIgnored, nil
	}
	if _, err := uuid.Parse(recipientID); err != nil {
		logger.Error("Checkout session carries a malformed recipient id", "recipient_id", recipientID)
		return OutcomeIgnored, nil
	}

	payment, ok := r.paymentFrom(session, recipientID, logger)
	if !ok {
		return OutcomeIgnored, nil
	}

	result, err := r.ledger.Record(ctx, payment)
	switch {
	case errors.Is(err, repository.ErrRecipientMissing):
		logger.Error("Payment recipient no longer exists", "recipient_id", recipientID)
		return OutcomeIgnored, nil
	case err != nil:
		logger.Error("Failed to record payment", "error", err)
		return "", apperrors.Persistence("Failed to record payment", err)
	case result == repository.AlreadyExists:
		return r.redeliver(ctx, session.PaymentIntentID, logger)
	}

	metrics.PaymentsRecorded.Inc()
	logger.Info("Payment recorded", "payment_id", payment.ID, "amount", payment.Amount, "recipient_id", recipientID)

	if err := r.publish(ctx, payment, logger); err != nil {
		return "", err
	}
	return OutcomeRecorded, nil
}

// redeliver handles a checkout for an intent already in the ledger. The row is
// not written again, but its event is published if an earlier delivery failed
// to do so.
func (r *Reconciler) redeliver(ctx context.Context, intentID string, logger *slog.Logger) (Outcome, error) {
	stored, err := r.ledger.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		logger.Error("Failed to load recorded payment", "error", err)
		return "", apperrors.Persistence("Failed to load recorded payment", err)
	}
	if stored.EventPublished {
		logger.Info("Payment already recorded")
		return OutcomeDuplicate, nil
	}

	logger.Info("Payment already recorded, publishing pending event", "payment_id", stored.ID)
	if err := r.publish(ctx, stored, logger); err != nil {
		return "", err
	}
	return OutcomeDuplicate, nil
}

// publish emits payment.recorded and flags the row. A broker failure is
// returned so the gateway redelivers; a failure to flag the row is only logged
// and may cause one repeated event.
func (r *Reconciler) publish(ctx context.Context, payment *models.Payment, logger *slog.Logger) error {
	if err := r.publisher.PaymentRecorded(ctx, models.PaymentRecorded{
		PaymentID:       payment.ID,
		PaymentIntentID: payment.PaymentIntentID,
		RecipientID:     payment.RecipientID,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
		PlatformFee:     payment.PlatformFee,
		NetAmount:       payment.NetAmount,
		PayerEmail:      payment.PayerEmail,
		RecordedAt:      payment.CreatedAt,
	}); err != nil {
		logger.Error("Failed to publish payment event", "payment_id", payment.ID, "error", err)
		return apperrors.Wrap(apperrors.KindInternal, apperrors.CodeInternal, "Failed to publish payment event", err)
	}
	if err := r.ledger.MarkPublished(ctx, payment.ID); err != nil {
		logger.Warn("Failed to mark payment event published", "payment_id", payment.ID, "error", err)
	}
	return nil
}

// paymentFrom builds the ledger row. The metadata written at checkout is
// preferred; the session's own total is the fallback when it is unusable.
func (r *Reconciler) paymentFrom(session *gateway.CompletedCheckout, recipientID string, logger *slog.Logger) (*models.Payment, bool) {
	keys := r.cfg.Metadata

	amount, err := strconv.ParseInt(session.Metadata[keys.TotalAmount], 10, 64)
	if err != nil || amount <= 0 {
		if session.AmountTotal == nil {
			logger.Error("Checkout session has no usable amount")
			return nil, false
		}
		amount = *session.AmountTotal
	}

	var fee, net *int64
	if v, err := strconv.ParseInt(session.Metadata[keys.PlatformFee], 10, 64); err == nil && v >= 0 && v <= amount {
		n := amount - v
		fee, net = &v, &n
	}

	currency := session.Currency
	if currency == "" {
		currency = r.cfg.Currency
	}

	p := &models.Payment{
		ID:              uuid.NewString(),
		PaymentIntentID: session.PaymentIntentID,
		Amount:          amount,
		Currency:        currency,
		Status:          models.PaymentStatusPaid,
		RecipientID:     recipientID,
		PlatformFee:     fee,
		NetAmount:       net,
		CreatedAt:       time.Now().UTC(),
	}
	if session.ID != "" {
		p.CheckoutSessionID = &session.ID
	}
	if session.CustomerEmail != "" {
		p.PayerEmail = &session.CustomerEmail
	}
	return p, true
}

func (r *Reconciler) accountUpdated(ctx context.Context, evt *gateway.Event, logger *slog.Logger) (Outcome, error) {
	account, err := evt.Account()
	if err != nil {
		logger.Error("Malformed account payload", "error", err)
		return OutcomeIgnored, nil
	}
	if account.ID == "" {
		return OutcomeIgnored, nil
	}
	logger = logger.With("account_id", account.ID)

	profiles, err := r.profiles.FindByPaymentAccount(ctx, account.ID)
	if err != nil {
		return "", apperrors.Persistence("Failed to look up payment account", err)
	}
	if len(profiles) == 0 {
		logger.Info("Account update for unknown payment account")
		return OutcomeIgnored, nil
	}

	complete := account.OnboardingComplete()
	changed, err := r.profiles.SetOnboardingByAccount(ctx, account.ID, complete)
	if err != nil {
		return "", apperrors.Persistence("Failed to update onboarding status", err)
	}
	if changed == 0 {
		return OutcomeOnboardingUnchanged, nil
	}

	logger.Info("Onboarding status updated", "complete", complete, "profiles", changed)
	r.invalidate(ctx, profiles, logger)
	return OutcomeOnboardingUpdated, nil
}

func (r *Reconciler) invalidate(ctx context.Context, profiles []models.Profile, logger *slog.Logger) {
	if r.cache == nil {
		return
	}
	usernames := make([]string, 0, len(profiles))
	for _, p := range profiles {
		usernames = append(usernames, p.Username)
	}
	if err := r.cache.Invalidate(ctx, usernames...); err != nil {
		logger.Warn("Failed to invalidate cached profiles", "error", err)
	}
}
