// Package prom exposes the portal's statsd-style metrics as Prometheus collectors.
package prom

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/target/estate-portal/internal/observability/statsd"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

type counterSpec struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramSpec struct {
	vec    *prometheus.HistogramVec
	labels []string
}

type gaugeSpec struct {
	vec    *prometheus.GaugeVec
	labels []string
}

// Sink maps the known statsd metric names onto Prometheus vectors registered
// in a private registry. Unknown names are dropped.
type Sink struct {
	registry   *prometheus.Registry
	counters   map[string]counterSpec
	histograms map[string]histogramSpec
	gauges     map[string]gaugeSpec
}

var _ statsd.Sink = (*Sink)(nil)

// NewSink builds the collectors under namespace and registers them.
func NewSink(namespace string) *Sink {
	s := &Sink{
		registry:   prometheus.NewRegistry(),
		counters:   map[string]counterSpec{},
		histograms: map[string]histogramSpec{},
		gauges:     map[string]gaugeSpec{},
	}

	sessionLabels := []string{"op", "category", "result", "error_class"}
	fetchLabels := []string{"role", "result", "error_class"}

	s.counter(namespace, "session.transition", "session_transitions_total",
		"Session state transitions by operation and outcome", sessionLabels)
	s.histogram(namespace, "session.duration", "session_operation_duration_seconds",
		"Latency of session operations that reach the credential service", sessionLabels)
	s.counter(namespace, "dashboard.fetch", "dashboard_fetch_total",
		"Dashboard poller refresh attempts", fetchLabels)
	s.histogram(namespace, "dashboard.fetch_duration", "dashboard_fetch_duration_seconds",
		"Latency of dashboard refreshes", fetchLabels)
	s.counter(namespace, "guard.decision", "guard_decisions_total",
		"Route guard decisions by variant", []string{"decision"})
	s.gauge(namespace, "session.authenticated", "session_authenticated",
		"1 while a principal is signed in", []string{"category"})

	return s
}

func (s *Sink) counter(ns, key, name, help string, labels []string) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}, labels)
	s.registry.MustRegister(vec)
	s.counters[key] = counterSpec{vec: vec, labels: labels}
}

func (s *Sink) histogram(ns, key, name, help string, labels []string) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      name,
		Help:      help,
		Buckets:   histogramBuckets,
	}, labels)
	s.registry.MustRegister(vec)
	s.histograms[key] = histogramSpec{vec: vec, labels: labels}
}

func (s *Sink) gauge(ns, key, name, help string, labels []string) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: name, Help: help}, labels)
	s.registry.MustRegister(vec)
	s.gauges[key] = gaugeSpec{vec: vec, labels: labels}
}

// Count implements statsd.Sink.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	def, ok := s.counters[strings.TrimSpace(name)]
	if !ok || value < 0 {
		return
	}
	def.vec.With(labelsFor(def.labels, tags)).Add(float64(value))
}

// Gauge implements statsd.Sink.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	def, ok := s.gauges[strings.TrimSpace(name)]
	if !ok {
		return
	}
	def.vec.With(labelsFor(def.labels, tags)).Set(value)
}

// Timing implements statsd.Sink.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	def, ok := s.histograms[strings.TrimSpace(name)]
	if !ok {
		return
	}
	def.vec.With(labelsFor(def.labels, tags)).Observe(value.Seconds())
}

// Registry exposes the underlying registry (tests and custom gatherers).
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus text format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func labelsFor(names []string, tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(names))
	for _, n := range names {
		labels[n] = tags[n]
	}
	return labels
}
