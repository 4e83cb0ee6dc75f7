// Package metricspkg holds the Prometheus collectors exported by the wallet.
package metricspkg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wallet"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ledgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	txRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tx_retries_total",
			Help:      "Database transactions retried after a transient failure",
		},
	)

	holdsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "holds_expired_total",
			Help:      "Escrow holds transitioned to EXPIRED",
		},
	)

	integrityViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "integrity_violations_total",
			Help:      "Accounts halted by a failed reconciliation",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveOperation records one finished ledger operation.
func ObserveOperation(operation, outcome string, started time.Time) {
	ledgerOperations.WithLabelValues(operation, outcome).Inc()
	ledgerOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// TxRetried counts a retried database transaction.
func TxRetried() {
	txRetries.Inc()
}

// HoldExpired counts an expired escrow hold.
func HoldExpired() {
	holdsExpired.Inc()
}

// IntegrityViolation counts a halted account.
func IntegrityViolation() {
	integrityViolations.Inc()
}

// ObserveHTTP records one served HTTP request.
func ObserveHTTP(method, path, status string, latency time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())
}
