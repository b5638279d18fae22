// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds collectors registered on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	deliveries   *prometheus.CounterVec
	redeliveries *prometheus.CounterVec
	completions  *prometheus.HistogramVec
	tasks        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooai",
			Name:      "deliveries_total",
			Help:      "Inbound webhook deliveries by event kind and outcome.",
		}, []string{"kind", "outcome"}),
		redeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooai",
			Name:      "redeliveries_total",
			Help:      "Deliveries whose event id had already been seen.",
		}, []string{"kind"}),
		completions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mooai",
			Name:      "completion_duration_seconds",
			Help:      "Latency of completion requests.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"provider", "outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooai",
			Name:      "background_tasks_total",
			Help:      "Post-response tasks by name and outcome.",
		}, []string{"name", "outcome"}),
	}
	reg.MustRegister(
		m.deliveries,
		m.redeliveries,
		m.completions,
		m.tasks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveDelivery(kind, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveRedelivery(kind string) {
	if m == nil {
		return
	}
	m.redeliveries.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCompletion(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completions.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveTask(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.tasks.WithLabelValues(name, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
