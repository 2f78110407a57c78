package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/linkbio/internal/config"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/notify"
	"github.com/illegalcall/linkbio/internal/repository"
)

type RecipientLookup interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// Worker consumes payment events and notifies the creators who were tipped.
type Worker struct {
	cfg       config.KafkaConfig
	consumer  sarama.ConsumerGroup
	profiles  RecipientLookup
	notifier  notify.Notifier
	logger    *slog.Logger
	ready     chan struct{}
	readyOnce sync.Once
}

func NewWorker(cfg config.KafkaConfig, consumer sarama.ConsumerGroup, profiles RecipientLookup, notifier notify.Notifier, logger *slog.Logger) *Worker {
	logger.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		consumer: consumer,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Start consumes until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Topic}
	w.logger.Info("Starting worker", "topics", topics, "group", w.cfg.Group)

	go func() {
		for err := range w.consumer.Errors() {
			w.logger.Error("Kafka consumer error received", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				w.logger.Error("Error from consumer.Consume", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(w.cfg.RetryBackoff):
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-w.ready:
		w.logger.Info("Worker setup complete; consumer ready")
	case <-ctx.Done():
	}

	<-ctx.Done()
	w.logger.Info("Worker shutting down gracefully")
	<-done
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	w.readyOnce.Do(func() { close(w.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks every message, even ones that failed, so a poison
// message cannot stall the partition.
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processMessage(session.Context(), message); err != nil {
			w.logger.Error("Failed to process payment event",
				"offset", message.Offset,
				"partition", message.Partition,
				"error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt models.PaymentRecorded
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("failed to parse payment event: %w", err)
	}
	if evt.RecipientID == "" {
		return fmt.Errorf("payment event %s has no recipient", evt.PaymentID)
	}

	recipient, err := w.profiles.GetByID(ctx, evt.RecipientID)
	if errors.Is(err, repository.ErrNotFound) {
		w.logger.Warn("Recipient of payment event not found", "payment_id", evt.PaymentID, "recipient_id", evt.RecipientID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}
	if recipient.Email == nil || *recipient.Email == "" {
		w.logger.Info("Recipient has no email address; skipping notification", "recipient_id", recipient.ID)
		return nil
	}

	notice := tipNotice(recipient, evt)
	for attempt := 1; ; attempt++ {
		err = w.notifier.TipReceived(ctx, *recipient.Email, notice)
		if err == nil {
			w.logger.Info("Tip notification delivered", "payment_id", evt.PaymentID, "attempt", attempt)
			return nil
		}
		w.logger.Error("Tip notification failed", "payment_id", evt.PaymentID, "attempt", attempt, "error", err)
		if attempt >= w.cfg.RetryMax {
			return fmt.Errorf("notification failed after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.RetryBackoff):
		}
	}
}

func tipNotice(recipient *models.Profile, evt models.PaymentRecorded) notify.TipNotice {
	name := recipient.Username
	if recipient.DisplayName != nil && *recipient.DisplayName != "" {
		name = *recipient.DisplayName
	}
	notice := notify.TipNotice{
		RecipientName: name,
		Amount:        notify.FormatAmount(evt.Amount, evt.Currency),
	}
	if evt.NetAmount != nil {
		notice.NetAmount = notify.FormatAmount(*evt.NetAmount, evt.Currency)
	}
	if evt.PayerEmail != nil {
		notice.PayerEmail = *evt.PayerEmail
	}
	return notice
}
