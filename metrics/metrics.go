// Package metrics exports conf.Loader activity as Prometheus metrics.
//
// Collector implements conf.Observer:
//
//	c := metrics.NewCollector(prometheus.DefaultRegisterer)
//	l := conf.NewLoader(conf.WithObserver(c))
//
// Exported series (namespace "confwire" unless overridden):
//
//	confwire_loads_total{type,outcome}           counter
//	confwire_load_duration_seconds{type}         histogram
//	confwire_loads_in_flight                     gauge
//	confwire_cache_hits_total{type}              counter
//	confwire_optional_skipped_total{type,field}  counter
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sghaida/confwire/conf"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "confwire"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Collector records loader events.
type Collector struct {
	loads           *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	cacheHits       *prometheus.CounterVec
	optionalSkipped *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the load duration histogram buckets, in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// NewCollector creates a Collector and registers its metrics on reg.
// It panics if the metrics are already registered on reg.
func NewCollector(reg prometheus.Registerer, opts ...Option) *Collector {
	o := options{
		namespace: DefaultNamespace,
		buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs .. ~26s
	}
	for _, opt := range opts {
		opt(&o)
	}

	f := promauto.With(reg)
	return &Collector{
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "loads_total",
			Help:      "Configuration instances materialized, by type and outcome.",
		}, []string{"type", "outcome"}),
		loadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to materialize and wire a configuration instance.",
			Buckets:   o.buckets,
		}, []string{"type"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "loads_in_flight",
			Help:      "Configuration instances currently being materialized.",
		}),
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "cache_hits_total",
			Help:      "Dependencies served from the instance cache.",
		}, []string{"type"}),
		optionalSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "optional_skipped_total",
			Help:      "Optional dependencies left unset after a resolution failure.",
		}, []string{"type", "field"}),
	}
}

// LoadStarted implements conf.Observer.
func (c *Collector) LoadStarted(conf.Type) { c.inFlight.Inc() }

// LoadFinished implements conf.Observer.
func (c *Collector) LoadFinished(t conf.Type, d time.Duration, err error) {
	c.inFlight.Dec()

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	name := t.String()
	c.loads.WithLabelValues(name, outcome).Inc()
	c.loadDuration.WithLabelValues(name).Observe(d.Seconds())
}

// CacheHit implements conf.Observer.
func (c *Collector) CacheHit(t conf.Type) {
	c.cacheHits.WithLabelValues(t.String()).Inc()
}

// OptionalSkipped implements conf.Observer.
func (c *Collector) OptionalSkipped(container conf.Type, field string, _ error) {
	c.optionalSkipped.WithLabelValues(container.String(), field).Inc()
}

var _ conf.Observer = (*Collector)(nil)
