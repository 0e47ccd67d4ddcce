// SPDX-License-Identifier: MPL-2.0

// Package metrics collects runtime telemetry into a per-context Prometheus
// registry, exposed through the instrumentation server.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "corvid"

// Collector owns the registry of one runtime context.
type Collector struct {
	registry  *prometheus.Registry
	startTime time.Time

	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	shutdownSteps *prometheus.CounterVec
	sends         prometheus.Counter
}

// NewCollector creates the collector. liveThreads is sampled on every
// gather; nil reports zero.
func NewCollector(contextID string, liveThreads func() int) *Collector {
	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	labels := prometheus.Labels{"context": contextID}

	c.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "boot",
			Name:        "stage_duration_seconds",
			Help:        "Time taken by each construction stage",
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
			ConstLabels: labels,
		},
		[]string{"stage"},
	)
	c.stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "boot",
			Name:        "stage_failures_total",
			Help:        "Construction stages that failed",
			ConstLabels: labels,
		},
		[]string{"stage"},
	)
	c.shutdownSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "shutdown",
			Name:        "steps_total",
			Help:        "Shutdown steps executed, by result",
			ConstLabels: labels,
		},
		[]string{"step", "result"},
	)
	c.sends = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "dispatch",
		Name:        "sends_total",
		Help:        "Method sends dispatched through the context",
		ConstLabels: labels,
	})

	threads := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "threads",
		Name:        "live",
		Help:        "Guest threads currently registered",
		ConstLabels: labels,
	}, func() float64 {
		if liveThreads == nil {
			return 0
		}
		return float64(liveThreads())
	})
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "uptime_seconds",
		Help:        "Seconds since the context was created",
		ConstLabels: labels,
	}, func() float64 { return time.Since(c.startTime).Seconds() })

	c.registry.MustRegister(c.stageDuration, c.stageFailures, c.shutdownSteps, c.sends, threads, uptime)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveStage records a completed or failed construction stage.
func (c *Collector) ObserveStage(stage string, d time.Duration, err error) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		c.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ShutdownStep records one shutdown step.
func (c *Collector) ShutdownStep(step string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.shutdownSteps.WithLabelValues(step, result).Inc()
}

// IncSends counts one dispatched send.
func (c *Collector) IncSends() { c.sends.Inc() }

// WriteText writes every metric of g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
