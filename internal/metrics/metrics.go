// Package metrics exposes ingestion outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/ingest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "occingest"

// Collector records ingestion outcomes. It implements ingest.Observer.
type Collector struct {
	registry *prometheus.Registry

	batches    *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	breaks     prometheus.Counter
	recoveries prometheus.Counter
}

// NewCollector registers the ingestion metrics on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Ingestion attempts by mode and result.",
		}, []string{"mode", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Failed ingestions by the stage they reached and the error kind.",
		}, []string{"stage", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one ingestion, from session check to submit.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"mode"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of submitted batches.",
		}, []string{"mode"}),
		breaks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_breaks_total",
			Help:      "Break requests sent after attach failures.",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "close_recoveries_total",
			Help:      "Failed closes confirmed as imported by the batch creation state.",
		}),
	}
	c.registry.MustRegister(c.batches, c.failures, c.duration, c.bytes, c.breaks, c.recoveries)
	return c
}

// Observe implements ingest.Observer.
func (c *Collector) Observe(_ context.Context, o ingest.Outcome) error {
	mode := o.Mode.String()
	c.duration.WithLabelValues(mode).Observe(o.Duration.Seconds())
	if o.Broken {
		c.breaks.Inc()
	}
	if o.Recovered {
		c.recoveries.Inc()
	}
	if o.Succeeded() {
		c.batches.WithLabelValues(mode, "success").Inc()
		c.bytes.WithLabelValues(mode).Add(float64(o.Bytes))
		return nil
	}
	c.batches.WithLabelValues(mode, "failure").Inc()
	kind := string(apperr.KindOf(o.Err))
	if kind == "" {
		kind = "unknown"
	}
	c.failures.WithLabelValues(string(o.Stage), kind).Inc()
	return nil
}

// Registry returns the registry holding the metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
