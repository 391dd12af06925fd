package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the ledger service.
type Metrics struct {
	// Registry owns the collectors below and backs the /metrics endpoint.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	operationsTotal   *prometheus.CounterVec
	txRetries         prometheus.Counter
	outboxPublished   *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// NewMetrics registers every collector in a private registry, so it is safe
// to call more than once in tests.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Ledger operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		txRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_tx_retries_total",
				Help: "Storage transactions retried after a transient conflict.",
			},
		),
		outboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_outbox_messages_total",
				Help: "Outbox messages handled by the publisher.",
			},
			[]string{"result"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_circuit_breaker_open",
				Help: "1 while the named circuit breaker is open.",
			},
			[]string{"name"},
		),
	}
}

func (m *Metrics) RecordOperation(operation string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrTxRetry() {
	m.txRetries.Inc()
}

func (m *Metrics) IncrOutbox(result string) {
	m.outboxPublished.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBreakerOpen(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.breakerState.WithLabelValues(name).Set(v)
}
