package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
		webhookEventsTotal,
	)
}

var (
	// result: processed|duplicate|ignored|failed|rejected
	// reason (rejected only): method_not_allowed|missing_secret|bad_body|bad_signature|ledger_error
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_requests_total",
			Help: "Count of /api/v1/billing/webhook deliveries by result and reason.",
		},
		[]string{"result", "reason"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_webhook_duration_seconds",
			Help:    "Duration of the billing webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_events_total",
			Help: "Verified billing events by provider type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

func ObserveWebhook(result, reason string, started time.Time) {
	WebhookRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	WebhookDuration.WithLabelValues(norm(result)).Observe(time.Since(started).Seconds())
}

func IncBillingEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}
