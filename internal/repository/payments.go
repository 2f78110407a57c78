package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/linkbio/internal/models"
)

const paymentColumns = `id, payment_intent_id, checkout_session_id, amount, currency, status, recipient_id, payer_email, platform_fee, net_amount, created_at`

const (
	insertPayment = `INSERT INTO payments (id, payment_intent_id, checkout_session_id, amount, currency, status, recipient_id, payer_email, platform_fee, net_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	selectPaymentsByRecipient = `SELECT ` + paymentColumns + ` FROM payments WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`

	selectPaymentByIntent = `SELECT ` + paymentColumns + `, (payment_events.payment_id IS NOT NULL) AS event_published
		FROM payments LEFT JOIN payment_events ON payment_events.payment_id = payments.id
		WHERE payment_intent_id = $1`

	markPaymentPublished = `INSERT INTO payment_events (payment_id) VALUES ($1) ON CONFLICT (payment_id) DO NOTHING`
)

// PaymentRepository is the append-only payment ledger. Event publication is
// tracked in payment_events so payment rows are never updated.
type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record inserts p unless a payment for the same intent already exists. The
// unique index decides: a unique_violation means another delivery won the
// race, which is reported as AlreadyExists rather than an error.
func (r *PaymentRepository) Record(ctx context.Context, p *models.Payment) (InsertResult, error) {
	err := r.db.QueryRowxContext(ctx, insertPayment,
		p.ID,
		p.PaymentIntentID,
		p.CheckoutSessionID,
		p.Amount,
		p.Currency,
		p.Status,
		p.RecipientID,
		p.PayerEmail,
		p.PlatformFee,
		p.NetAmount,
	).Scan(&p.CreatedAt)
	switch {
	case err == nil:
		return Created, nil
	case isUniqueViolation(err, paymentIntentIndex):
		return AlreadyExists, nil
	case isForeignKeyViolation(err):
		return 0, fmt.Errorf("%w: %s", ErrRecipientMissing, p.RecipientID)
	default:
		return 0, fmt.Errorf("failed to record payment: %w", err)
	}
}

func (r *PaymentRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Payment, error) {
	payments := []models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, selectPaymentsByRecipient, recipientID, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}
	return payments, nil
}

// GetByPaymentIntent loads the ledger row for an intent, including whether its
// event has been published.
func (r *PaymentRepository) GetByPaymentIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, selectPaymentByIntent, intentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &p, nil
}

// MarkPublished records that the payment.recorded event for paymentID was sent.
func (r *PaymentRepository) MarkPublished(ctx context.Context, paymentID string) error {
	if _, err := r.db.ExecContext(ctx, markPaymentPublished, paymentID); err != nil {
		return fmt.Errorf("failed to mark payment published: %w", err)
	}
	return nil
}
