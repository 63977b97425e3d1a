package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventMetrics counts lifecycle event publishes.
type EventMetrics struct {
	published *prometheus.CounterVec
}

// NewEventMetrics creates the event collector and registers it on reg.
func NewEventMetrics(reg *Registry) (*EventMetrics, error) {
	m := &EventMetrics{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudkit_events_published_total",
				Help: "Total lifecycle event publishes by event type and outcome",
			},
			[]string{"resource", "type", "outcome"},
		),
	}
	if err := reg.Register(m.published); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordEventPublished counts one publish attempt. outcome is "success" or "error".
func (m *EventMetrics) RecordEventPublished(resource, eventType, outcome string) {
	m.published.WithLabelValues(resource, eventType, outcome).Inc()
}
