// Package metrics exposes crudkit collectors on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the collectors scraped from the management server. Every Registry carries its
// own HTTP request metrics plus the Go runtime and process collectors.
type Registry struct {
	registry *prometheus.Registry
	http     *HTTPMetrics
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry(), http: newHTTPMetrics()}
	r.registry.MustRegister(r.http.collectors()...)
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// HTTP returns the request metrics fed by the public server middleware.
func (r *Registry) HTTP() *HTTPMetrics { return r.http }

// Register adds a collector. Registering the same metric name twice fails.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

func (r *Registry) Unregister(c prometheus.Collector) bool {
	return r.registry.Unregister(c)
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
