package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		reconcileTotal,
		reconcilePreservedTotal,
		integrityGuardOmittedTotal,
		providerCallDuration,
	)
}

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_total",
			Help: "Reconciliation passes by entry point and result.",
		},
		[]string{"source", "result"}, // source: pull|webhook; result: written|preserved|failed
	)

	reconcilePreservedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_preserved_total",
			Help: "Passes that kept the stored record because the provider established nothing.",
		},
		[]string{"reason"}, // no_customer|lookup_failed
	)

	integrityGuardOmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integrity_guard_omitted_total",
			Help: "Writes whose external customer id was dropped to protect the stored one.",
		},
		[]string{"reason"}, // empty|mismatch
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_provider_call_duration_seconds",
			Help:    "Latency of billing provider calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op", "success"},
	)
)

func IncReconcile(source, result string) {
	reconcileTotal.WithLabelValues(norm(source), norm(result)).Inc()
}

func IncPreserved(reason string) {
	reconcilePreservedTotal.WithLabelValues(norm(reason)).Inc()
}

func IncIntegrityOmitted(reason string) {
	integrityGuardOmittedTotal.WithLabelValues(norm(reason)).Inc()
}

func ObserveProviderCall(op string, started time.Time, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	providerCallDuration.WithLabelValues(norm(op), success).Observe(time.Since(started).Seconds())
}
