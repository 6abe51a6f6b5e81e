// Invariants are conditions the code itself must uphold; a violated invariant
// means a bug, not an environmental failure. Think of what you would panic on,
// except that a streaming operator should keep serving its peers rather than
// crash mid-epoch. Raising an invariant records an error log and bumps a
// counter that monitoring can alert on; the caller still has to handle the
// broken case (usually with an early return).
//
// Never raise invariants for conditions driven by the outside world. A failed
// network read is an error to return; a cache whose accounted size drifts from
// the sum of its entries is an invariant violation.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

// RaiseInvariant reports a violated invariant through logging and monitoring.
// In test builds it panics instead, so bugs surface as test failures.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// InvariantCount returns how many times the given invariant has been raised.
func InvariantCount(module, invariantType string) int {
	var metric = &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error(err.Error())
		return 0
	}
	return int(metric.Counter.GetValue())
}
