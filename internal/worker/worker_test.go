package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/linkbio/internal/config"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/notify"
	"github.com/illegalcall/linkbio/internal/repository"
)

// MockConsumerGroup mocks sarama.ConsumerGroup
type MockConsumerGroup struct {
	mock.Mock
}

func (m *MockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	args := m.Called(ctx, topics, handler)
	return args.Error(0)
}

func (m *MockConsumerGroup) Errors() <-chan error {
	args := m.Called()
	return args.Get(0).(chan error)
}

func (m *MockConsumerGroup) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConsumerGroup) Pause(partitions map[string][]int32) {
	m.Called(partitions)
}

func (m *MockConsumerGroup) Resume(partitions map[string][]int32) {
	m.Called(partitions)
}

func (m *MockConsumerGroup) PauseAll() {
	m.Called()
}

func (m *MockConsumerGroup) ResumeAll() {
	m.Called()
}

// MockNotifier mocks notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TipReceived(ctx context.Context, to string, notice notify.TipNotice) error {
	args := m.Called(ctx, to, notice)
	return args.Error(0)
}

type stubProfiles map[string]*models.Profile

func (s stubProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	p, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func strPtr(s string) *string { return &s }

// setupTestWorker creates a test worker with mocked dependencies
func setupTestWorker(t *testing.T) (*Worker, *MockConsumerGroup, *MockNotifier) {
	cfg := config.KafkaConfig{
		Topic:        "test-topic",
		Group:        "test-group",
		RetryMax:     3,
		RetryBackoff: time.Millisecond,
	}
	profiles := stubProfiles{
		"p1": {ID: "p1", Username: "alice", DisplayName: strPtr("Alice"), Email: strPtr("alice@example.com")},
		"p2": {ID: "p2", Username: "bob"},
	}

	consumerGroup := new(MockConsumerGroup)
	notifier := new(MockNotifier)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(cfg, consumerGroup, profiles, notifier, logger), consumerGroup, notifier
}

func paymentMessage(t *testing.T, evt models.PaymentRecorded) *sarama.ConsumerMessage {
	value, err := json.Marshal(evt)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Value: value}
}

func TestProcessMessage(t *testing.T) {
	net := int64(450)
	payer := "fan@example.com"

	t.Run("notifies recipient", func(t *testing.T) {
		worker, _, notifier := setupTestWorker(t)
		notifier.On("TipReceived", mock.Anything, "alice@example.com", notify.TipNotice{
			RecipientName: "Alice",
			Amount:        "5.00 USD",
			NetAmount:     "4.50 USD",
			PayerEmail:    "fan@example.com",
		}).Return(nil).Once()

		err := worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{
			PaymentID: "pay-1", RecipientID: "p1", Amount: 500, Currency: "usd", NetAmount: &net, PayerEmail: &payer,
		}))
		assert.NoError(t, err)
		notifier.AssertExpectations(t)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		worker, _, notifier := setupTestWorker(t)
		notifier.On("TipReceived", mock.Anything, "alice@example.com", mock.Anything).Return(errors.New("smtp busy")).Twice()
		notifier.On("TipReceived", mock.Anything, "alice@example.com", mock.Anything).Return(nil).Once()

		err := worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{
			PaymentID: "pay-1", RecipientID: "p1", Amount: 500, Currency: "usd",
		}))
		assert.NoError(t, err)
		notifier.AssertNumberOfCalls(t, "TipReceived", 3)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		worker, _, notifier := setupTestWorker(t)
		notifier.On("TipReceived", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		err := worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{
			PaymentID: "pay-1", RecipientID: "p1", Amount: 500, Currency: "usd",
		}))
		assert.ErrorContains(t, err, "after 3 attempts")
		notifier.AssertNumberOfCalls(t, "TipReceived", 3)
	})

	t.Run("skips recipients without email", func(t *testing.T) {
		worker, _, notifier := setupTestWorker(t)
		err := worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{RecipientID: "p2"}))
		assert.NoError(t, err)
		notifier.AssertNotCalled(t, "TipReceived", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skips unknown recipients", func(t *testing.T) {
		worker, _, _ := setupTestWorker(t)
		assert.NoError(t, worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{RecipientID: "gone"})))
	})

	t.Run("errors", func(t *testing.T) {
		worker, _, _ := setupTestWorker(t)
		assert.Error(t, worker.processMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")}))
		assert.Error(t, worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{})))
		assert.Error(t, worker.processMessage(context.Background(), paymentMessage(t, models.PaymentRecorded{RecipientID: "broken"})))
	})
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	marked []int64
}

func (s *fakeSession) Context() context.Context { return context.Background() }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaimMarksEveryMessage(t *testing.T) {
	worker, _, notifier := setupTestWorker(t)
	notifier.On("TipReceived", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	good := paymentMessage(t, models.PaymentRecorded{PaymentID: "pay-1", RecipientID: "p1", Amount: 100, Currency: "usd"})
	good.Offset = 1
	poison := &sarama.ConsumerMessage{Value: []byte("{"), Offset: 2}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- good
	claim.messages <- poison
	close(claim.messages)

	session := &fakeSession{}
	require.NoError(t, worker.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{1, 2}, session.marked)
	notifier.AssertNumberOfCalls(t, "TipReceived", 1)
}

func TestWorkerStart(t *testing.T) {
	worker, consumerGroup, _ := setupTestWorker(t)

	errChan := make(chan error)
	consumerGroup.On("Errors").Return(errChan)
	consumerGroup.On("Consume", mock.Anything, []string{"test-topic"}, mock.Anything).
		Run(func(args mock.Arguments) {
			handler := args.Get(2).(sarama.ConsumerGroupHandler)
			_ = handler.Setup(nil)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := worker.Start(ctx)
	assert.NoError(t, err)
	consumerGroup.AssertExpectations(t)
}
