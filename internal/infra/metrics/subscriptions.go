package metrics

import (
	"pet-subscription-sync/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		auditRunsTotal,
		subscriberIntegrityViolations,
		subscribersTotal,
	)
}

var (
	auditRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_audit_runs_total",
			Help: "Corruption monitor runs by result.",
		},
		[]string{"result"}, // clean|violations|error
	)

	subscriberIntegrityViolations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriber_integrity_violations",
			Help: "Entitled subscribers without an external customer id, as of the last audit.",
		},
	)

	subscribersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscribers_total",
			Help: "Current number of subscribers by status.",
		},
		[]string{"status"},
	)
)

func IncAuditRun(result string) {
	auditRunsTotal.WithLabelValues(norm(result)).Inc()
}

func SetIntegrityViolations(n int) {
	subscriberIntegrityViolations.Set(float64(n))
}

func SetSubscribersTotal(counts map[model.SubscriberStatus]int) {
	statuses := []model.SubscriberStatus{
		model.SubscriberStatusInactive,
		model.SubscriberStatusActive,
		model.SubscriberStatusGrace,
		model.SubscriberStatusSuspended,
	}
	for _, status := range statuses {
		subscribersTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
