package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts allocation outcomes and sale transitions. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	allocations     *prometheus.CounterVec
	allocatedUnits  *prometheus.CounterVec
	saleTransitions *prometheus.CounterVec
	receiptFailures prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dutyfree",
			Subsystem: "stock",
			Name:      "allocations_total",
			Help:      "Allocator operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		allocatedUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dutyfree",
			Subsystem: "stock",
			Name:      "units_total",
			Help:      "Units moved by successful allocator operations.",
		}, []string{"operation"}),
		saleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dutyfree",
			Subsystem: "sales",
			Name:      "transitions_total",
			Help:      "Sale status transitions by target status.",
		}, []string{"status"}),
		receiptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dutyfree",
			Subsystem: "sales",
			Name:      "receipt_failures_total",
			Help:      "Receipt requests that failed after a sale completed.",
		}),
	}
	reg.MustRegister(m.allocations, m.allocatedUnits, m.saleTransitions, m.receiptFailures)
	return m
}

func (m *Metrics) allocation(op string, units int, err error) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(op, outcome(err)).Inc()
	if err == nil {
		m.allocatedUnits.WithLabelValues(op).Add(float64(units))
	}
}

func (m *Metrics) transition(status string) {
	if m == nil {
		return
	}
	m.saleTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) receiptFailed() {
	if m == nil {
		return
	}
	m.receiptFailures.Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInsufficientReserved):
		return "insufficient_reserved"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
