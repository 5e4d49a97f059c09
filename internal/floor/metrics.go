package floor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus instruments updated by the service.  A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	cells      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floor",
			Name:      "operations_total",
			Help:      "Allocator operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floor",
			Name:      "cells_changed_total",
			Help:      "Cells allocated, released or marked paid.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floor",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of allocator transactions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.cells, m.duration)
	return m
}

func (m *Metrics) observe(op string, started time.Time, cells int, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.operations.WithLabelValues(op, outcome(err)).Inc()
	if err == nil && cells > 0 {
		m.cells.WithLabelValues(op).Add(float64(cells))
	}
}

func outcome(err error) string {
	switch err.(type) {
	case nil:
		return "ok"
	case *DecompositionError:
		return "decomposition_error"
	case *InsufficientSpaceError:
		return "insufficient_space"
	case *AlreadyAllocatedError:
		return "already_allocated"
	case *PersistenceError:
		return "persistence_error"
	}
	return "rejected"
}
