// Package metrics exposes Prometheus collectors for library operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookledger"

// Outcome labels
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeInvalidState = "invalid_state"
	OutcomeEmptyLog     = "empty_log"
	OutcomeError        = "error"
)

// Collector records operation outcomes and catalog/log sizes.
// A nil *Collector is valid and records nothing.
type Collector struct {
	operations   *prometheus.CounterVec
	catalogBooks prometheus.Gauge
	logDepth     prometheus.Gauge
}

// NewCollector creates the collectors and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Library operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		catalogBooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_books",
			Help:      "Number of books currently in the catalog.",
		}),
		logDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transaction_log_depth",
			Help:      "Number of transactions available to undo.",
		}),
	}
	reg.MustRegister(c.operations, c.catalogBooks, c.logDepth)
	return c
}

// ObserveOperation counts one completed operation
func (c *Collector) ObserveOperation(operation, outcome string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
}

// SetSizes updates the catalog and log gauges
func (c *Collector) SetSizes(catalogBooks, logDepth int) {
	if c == nil {
		return
	}
	c.catalogBooks.Set(float64(catalogBooks))
	c.logDepth.Set(float64(logDepth))
}
