// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkbio_checkout_sessions_total",
		Help: "Checkout sessions created with the payment processor.",
	})

	CheckoutRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkbio_checkout_rejections_total",
		Help: "Checkout requests rejected, by error code.",
	}, []string{"code"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkbio_webhook_events_total",
		Help: "Webhook deliveries processed, by event type and outcome.",
	}, []string{"type", "outcome"})

	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkbio_payments_recorded_total",
		Help: "Payments written to the ledger.",
	})
)
