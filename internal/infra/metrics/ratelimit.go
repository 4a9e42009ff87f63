package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(rateLimitRequestsTotal) }

var rateLimitRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_requests_total",
		Help: "Pull-path throttle decisions by scope and result.",
	},
	[]string{"scope", "result"}, // result: allowed|limited|error
)

func IncRateLimit(scope, result string) {
	rateLimitRequestsTotal.WithLabelValues(norm(scope), norm(result)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
