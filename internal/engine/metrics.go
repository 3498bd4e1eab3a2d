package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operations is a singleton for the per-operation counter vec.
	operations *prometheus.CounterVec //nolint:gochecknoglobals
)

//nolint:gochecknoinits
func init() {
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settingsd_engine_operations_total",
			Help: "Number of settings engine operations, differentiated by operation and result.",
		},
		[]string{"operation", "result"},
	)
}

func observe(operation, result string) {
	operations.WithLabelValues(operation, result).Inc()
}
