package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics counts and times orchestrated resource operations. It satisfies the
// resource package's Recorder interface.
type OperationMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewOperationMetrics creates the operation collectors and registers them on reg.
func NewOperationMetrics(reg *Registry) (*OperationMetrics, error) {
	m := &OperationMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudkit_operations_total",
				Help: "Total number of resource operations by outcome",
			},
			[]string{"resource", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crudkit_operation_duration_seconds",
				Help:    "Resource operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "operation"},
		),
	}
	if err := reg.Register(m.total); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		reg.Unregister(m.total)
		return nil, err
	}
	return m, nil
}

// ObserveOperation records one finished operation.
func (m *OperationMetrics) ObserveOperation(resource, operation, outcome string, duration time.Duration) {
	m.total.WithLabelValues(resource, operation, outcome).Inc()
	m.duration.WithLabelValues(resource, operation).Observe(duration.Seconds())
}
