package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(ts.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStripeGateway("sk_test_123", testWebhookSecret, backend, logger)
}

func TestCreateCheckoutSession(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "50", r.PostForm.Get("payment_intent_data[application_fee_amount]"))
		assert.Equal(t, "acct_1", r.PostForm.Get("payment_intent_data[transfer_data][destination]"))
		assert.Equal(t, "50", r.PostForm.Get("metadata[app_platform_fee_charged]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	s, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Amount:             500,
		ApplicationFee:     50,
		Currency:           "usd",
		ProductName:        "Support for Alice",
		DestinationAccount: "acct_1",
		SuccessURL:         "https://app.example.com/payment-success",
		CancelURL:          "https://app.example.com/alice",
		Metadata:           map[string]string{"app_platform_fee_charged": "50"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Contains(t, s.URL, "cs_test_1")
}

func TestCreateCheckoutSessionProcessorError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such destination"}}`))
	})

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Amount: 500, Currency: "usd", DestinationAccount: "acct_x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such destination")
}

func TestCancelledContextStopsProcessorCalls(t *testing.T) {
	var calls atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"account"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.CreateCheckoutSession(ctx, CheckoutRequest{Amount: 500, Currency: "usd", DestinationAccount: "acct_1"})
	assert.Error(t, err)

	_, err = g.CreateConnectedAccount(ctx, AccountRequest{Email: "creator@example.com"})
	assert.Error(t, err)

	_, err = g.CreateOnboardingLink(ctx, "acct_1", "https://app.example.com/refresh", "https://app.example.com/return")
	assert.Error(t, err)

	_, err = g.GetAccount(ctx, "acct_1")
	assert.Error(t, err)

	assert.Zero(t, calls.Load())
}

func TestConnectedAccountLifecycle(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/accounts":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "express", r.PostForm.Get("type"))
			assert.Equal(t, "creator@example.com", r.PostForm.Get("email"))
			assert.Equal(t, "p1", r.PostForm.Get("metadata[app_user_id]"))
			_, _ = w.Write([]byte(`{"id":"acct_new","object":"account"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/account_links":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "acct_new", r.PostForm.Get("account"))
			assert.Equal(t, "account_onboarding", r.PostForm.Get("type"))
			_, _ = w.Write([]byte(`{"object":"account_link","url":"https://connect.stripe.com/setup/e/acct_new"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/accounts/acct_new":
			_, _ = w.Write([]byte(`{"id":"acct_new","object":"account","charges_enabled":true,"payouts_enabled":false,"details_submitted":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	id, err := g.CreateConnectedAccount(ctx, AccountRequest{
		Email:    "creator@example.com",
		Country:  "US",
		Metadata: map[string]string{"app_user_id": "p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "acct_new", id)

	url, err := g.CreateOnboardingLink(ctx, id, "https://app.example.com/refresh", "https://app.example.com/return")
	require.NoError(t, err)
	assert.Contains(t, url, "acct_new")

	state, err := g.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, state.ChargesEnabled)
	assert.False(t, state.OnboardingComplete())
}

func signed(t *testing.T, payload string) (string, string) {
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return string(sp.Payload), sp.Header
}

func TestConstructEvent(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	body, header := signed(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"payment_intent": "pi_1",
			"payment_status": "paid",
			"amount_total": 500,
			"currency": "usd",
			"customer_details": {"email": "fan@example.com"},
			"metadata": {"app_recipient_user_id": "p1"}
		}}
	}`)

	evt, err := g.ConstructEvent([]byte(body), header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.Equal(t, int64(1700000000), evt.Created.Unix())

	cs, err := evt.CheckoutSession()
	require.NoError(t, err)
	assert.Equal(t, "pi_1", cs.PaymentIntentID)
	assert.Equal(t, PaymentStatusPaid, cs.PaymentStatus)
	assert.EqualValues(t, 500, *cs.AmountTotal)
	assert.Equal(t, "fan@example.com", cs.CustomerEmail)
	assert.Equal(t, "p1", cs.Metadata["app_recipient_user_id"])
}

func TestConstructEventRejectsTampering(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	body, header := signed(t, `{"id":"evt_1","object":"event","type":"account.updated","data":{"object":{}}}`)

	tests := []struct {
		name   string
		body   string
		header string
	}{
		{"tampered body", body + " ", header},
		{"missing header", body, ""},
		{"garbage header", body, "t=1,v1=deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.ConstructEvent([]byte(tt.body), tt.header)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestEventDecoding(t *testing.T) {
	expanded := &Event{Raw: []byte(`{"id":"cs_2","payment_intent":{"id":"pi_2","object":"payment_intent"},"customer_email":"a@example.com"}`)}
	cs, err := expanded.CheckoutSession()
	require.NoError(t, err)
	assert.Equal(t, "pi_2", cs.PaymentIntentID)
	assert.Equal(t, "a@example.com", cs.CustomerEmail)
	assert.Nil(t, cs.AmountTotal)

	missing := &Event{Raw: []byte(`{"id":"cs_3","payment_intent":null}`)}
	cs, err = missing.CheckoutSession()
	require.NoError(t, err)
	assert.Empty(t, cs.PaymentIntentID)

	_, err = (&Event{Raw: []byte(`{"id":"cs_4","payment_intent":42}`)}).CheckoutSession()
	assert.Error(t, err)

	acct := &Event{Raw: []byte(`{"id":"acct_1","charges_enabled":true,"payouts_enabled":true,"details_submitted":true}`)}
	state, err := acct.Account()
	require.NoError(t, err)
	assert.True(t, state.OnboardingComplete())

	_, err = (&Event{Raw: []byte(`[`)}).Account()
	assert.Error(t, err)
}
