package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace     = "learnhub"
	httpSubsystem = "http"
)

// HTTP latencies are dominated by multipart resume uploads at the top end.
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration of public API requests by route.",
		Buckets:   httpDurationBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "requests_total",
		Help:      "Public API requests by route and status.",
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "requests_in_flight",
		Help:      "Public API requests being served, live channel upgrades included.",
	})
)

// Request describes one finished HTTP request.
type Request struct {
	Method string
	// Route is the route template, never the raw URL.
	Route    string
	Status   int
	Duration time.Duration
}

// ObserveRequest records the duration and count of a finished request.
func ObserveRequest(r Request) {
	status := strconv.Itoa(r.Status)
	httpRequestDuration.WithLabelValues(r.Method, r.Route, status).Observe(r.Duration.Seconds())
	httpRequestsTotal.WithLabelValues(r.Method, r.Route, status).Inc()
}

// TrackInFlight counts a request as in flight until the returned func is called.
func TrackInFlight() (done func()) {
	httpRequestsInFlight.Inc()
	return httpRequestsInFlight.Dec
}
