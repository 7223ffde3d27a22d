package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks money-market operation volume and liquidation outcomes.
type LedgerMetrics struct {
	operations   *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	utilization  *prometheus.GaugeVec
}

var (
	ledgerOnce    sync.Once
	ledgerMetrics *LedgerMetrics
)

// Ledger returns the process-wide money-market metrics collection, registering
// the collectors on first use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerMetrics = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "redbank",
				Name:      "operations_total",
				Help:      "Count of ledger operations by type and denom.",
			}, []string{"op", "denom"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "redbank",
				Name:      "liquidation_results_total",
				Help:      "Count of liquidation attempts by result.",
			}, []string{"result"}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "redbank",
				Name:      "market_utilization",
				Help:      "Last observed utilization ratio per market.",
			}, []string{"denom"}),
		}
		prometheus.MustRegister(
			ledgerMetrics.operations,
			ledgerMetrics.liquidations,
			ledgerMetrics.utilization,
		)
	})
	return ledgerMetrics
}

// ObserveOperation records one completed ledger operation.
func (m *LedgerMetrics) ObserveOperation(op, denom string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, denom).Inc()
}

// ObserveLiquidation records the outcome of a liquidation attempt.
func (m *LedgerMetrics) ObserveLiquidation(result string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(result).Inc()
}

// ObserveUtilization records the utilization of a market after an operation.
func (m *LedgerMetrics) ObserveUtilization(denom string, utilization float64) {
	if m == nil {
		return
	}
	m.utilization.WithLabelValues(denom).Set(utilization)
}
