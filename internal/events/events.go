// Package events publishes payment lifecycle events for asynchronous
// consumers such as the notification worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/illegalcall/linkbio/internal/models"
)

type Publisher interface {
	PaymentRecorded(ctx context.Context, evt models.PaymentRecorded) error
}

// KafkaPublisher writes events as JSON to a single topic, keyed by recipient
// so one creator's events stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PaymentRecorded(_ context.Context, evt models.PaymentRecorded) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.RecipientID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}

	p.logger.Info("Payment event published",
		"payment_id", evt.PaymentID,
		"partition", partition,
		"offset", offset)
	return nil
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PaymentRecorded(context.Context, models.PaymentRecorded) error { return nil }
