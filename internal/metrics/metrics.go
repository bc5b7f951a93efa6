// Package metrics exposes gateway counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer   prometheus.Gatherer
	requests   *prometheus.CounterVec
	provisions *prometheus.CounterVec
	provisionD *prometheus.HistogramVec
	forwards   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, which also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: g,
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partql_gateway_requests_total",
				Help: "Gateway requests by route and status code",
			},
			[]string{"route", "code"},
		),
		provisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partql_unit_ensure_total",
				Help: "Unit lookups by outcome (running, created, adopted, failed)",
			},
			[]string{"outcome"},
		),
		provisionD: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "partql_unit_ensure_seconds",
				Help:    "Time spent making sure a unit runs",
				Buckets: []float64{.005, .05, .25, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		forwards: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partql_forward_total",
				Help: "Requests forwarded to units by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest counts a finished gateway request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveProvision records the outcome of a unit lookup.
func (m *Metrics) ObserveProvision(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
	m.provisionD.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveForward counts a forwarded request; result is "ok" or "error".
func (m *Metrics) ObserveForward(result string) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
