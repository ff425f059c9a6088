// Package metrics provides the Prometheus registry served on the management port.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry exposes the process-wide collectors registered through promauto
// (HTTP, jobs, OTP, notifications and the Go runtime) together with any
// collector registered on the Registry itself.
type Registry struct {
	registry *prometheus.Registry
	base     prometheus.Gatherer
}

// NewRegistry creates a registry backed by the default Prometheus gatherer.
func NewRegistry() *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
		base:     prometheus.DefaultGatherer,
	}
}

// Register registers a collector that is not already known to promauto.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister registers collectors and panics on error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

// Unregister removes a collector registered on r.
func (r *Registry) Unregister(collector prometheus.Collector) bool {
	return r.registry.Unregister(collector)
}

// Handler serves every gathered metric in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer merges the default gatherer with r's own collectors.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{r.base, r.registry}
}
