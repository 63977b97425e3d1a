package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics counts entity cache lookups by result (hit, miss, error).
type CacheMetrics struct {
	results *prometheus.CounterVec
}

// NewCacheMetrics creates the cache collector and registers it on reg.
func NewCacheMetrics(reg *Registry) (*CacheMetrics, error) {
	m := &CacheMetrics{
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudkit_cache_results_total",
				Help: "Total entity cache lookups by result",
			},
			[]string{"resource", "result"},
		),
	}
	if err := reg.Register(m.results); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCacheResult counts one lookup.
func (m *CacheMetrics) RecordCacheResult(resource, result string) {
	m.results.WithLabelValues(resource, result).Inc()
}
