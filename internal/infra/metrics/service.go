package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(serviceBuildInfo, dbPoolConns)
}

var (
	serviceBuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subsync_build_info",
			Help: "Constant 1, labelled with the running version, commit and Go runtime.",
		},
		[]string{"version", "commit", "go_version"},
	)

	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total|idle|acquired
	)
)

func SetBuildInfo(version, commit string) {
	serviceBuildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func SetDBPool(total, idle, acquired int32) {
	dbPoolConns.WithLabelValues("total").Set(float64(total))
	dbPoolConns.WithLabelValues("idle").Set(float64(idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}
