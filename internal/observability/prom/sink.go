// Package prom exposes dispatch metrics to Prometheus through the statsd.Sink interface, so the
// same emitters feed both backends.
package prom

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/target/case-dispatch/internal/observability/statsd"
)

// Options configures a Sink.
type Options struct {
	Namespace string
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
	// Labels declares the tag keys of known metrics, keyed by statsd name.
	Labels map[string][]string
}

// Sink maps Count to counters, Gauge to gauges and Timing to histograms in seconds.
// A metric uses the label set declared in Options.Labels. An undeclared metric takes its label
// set from its first observation. Either way, later observations fill missing labels with ""
// and drop unknown ones.
type Sink struct {
	namespace string
	registry  *prometheus.Registry
	declared  map[string][]string

	mu         sync.Mutex
	counters   map[string]*vec[*prometheus.CounterVec]
	gauges     map[string]*vec[*prometheus.GaugeVec]
	histograms map[string]*vec[*prometheus.HistogramVec]
}

type vec[T any] struct {
	labels []string
	v      T
}

var _ statsd.Sink = (*Sink)(nil)

// NewSink creates a Prometheus-backed metrics sink.
func NewSink(opts Options) *Sink {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	ns := opts.Namespace
	if ns == "" {
		ns = statsd.DefaultPrefix
	}
	declared := make(map[string][]string, len(opts.Labels))
	for name, keys := range opts.Labels {
		tags := make(map[string]string, len(keys))
		for _, k := range keys {
			tags[k] = ""
		}
		declared[name] = labelNames(tags)
	}
	return &Sink{
		namespace:  sanitize(ns),
		registry:   reg,
		declared:   declared,
		counters:   make(map[string]*vec[*prometheus.CounterVec]),
		gauges:     make(map[string]*vec[*prometheus.GaugeVec]),
		histograms: make(map[string]*vec[*prometheus.HistogramVec]),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Registry returns the underlying registry.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// Count implements statsd.Sink.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if s == nil || value < 0 {
		return
	}
	s.mu.Lock()
	c, ok := s.counters[name]
	if !ok {
		labels := s.labelsFor(name, tags)
		c = &vec[*prometheus.CounterVec]{labels: labels, v: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      sanitize(name) + "_total",
			Help:      "Count of " + name + ".",
		}, labels)}
		if !s.register(c.v) {
			s.mu.Unlock()
			return
		}
		s.counters[name] = c
	}
	s.mu.Unlock()
	c.v.With(labelValues(c.labels, tags)).Add(float64(value))
}

// Gauge implements statsd.Sink.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	g, ok := s.gauges[name]
	if !ok {
		labels := s.labelsFor(name, tags)
		g = &vec[*prometheus.GaugeVec]{labels: labels, v: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      sanitize(name),
			Help:      "Current value of " + name + ".",
		}, labels)}
		if !s.register(g.v) {
			s.mu.Unlock()
			return
		}
		s.gauges[name] = g
	}
	s.mu.Unlock()
	g.v.With(labelValues(g.labels, tags)).Set(value)
}

// Timing implements statsd.Sink.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	h, ok := s.histograms[name]
	if !ok {
		labels := s.labelsFor(name, tags)
		h = &vec[*prometheus.HistogramVec]{labels: labels, v: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      sanitize(name) + "_seconds",
			Help:      "Duration of " + name + ".",
			Buckets:   prometheus.DefBuckets,
		}, labels)}
		if !s.register(h.v) {
			s.mu.Unlock()
			return
		}
		s.histograms[name] = h
	}
	s.mu.Unlock()
	h.v.With(labelValues(h.labels, tags)).Observe(value.Seconds())
}

func (s *Sink) labelsFor(name string, tags map[string]string) []string {
	if labels, ok := s.declared[name]; ok {
		return labels
	}
	return labelNames(tags)
}

func (s *Sink) register(c prometheus.Collector) bool {
	return s.registry.Register(c) == nil
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		if k = sanitize(k); k != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags map[string]string) prometheus.Labels {
	byName := make(map[string]string, len(tags))
	for k, v := range tags {
		byName[sanitize(k)] = v
	}
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = byName[n]
	}
	return out
}

// sanitize converts a dotted statsd name into a Prometheus identifier.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
