// Package metrics exposes Prometheus collectors for plan execution, value
// generation and the contract store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pact-foundation/pactengine/internal/engine"
)

const namespace = "pactengine"

// Collector holds the engine metrics. It implements engine.Observer.
type Collector struct {
	registry *prometheus.Registry

	verifications        *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
	actions              *prometheus.CounterVec
	generations          *prometheus.CounterVec
	storeOps             *prometheus.CounterVec
	plansLoaded          prometheus.Gauge
}

// NewCollector registers the engine metrics with registry. A nil registry
// gets a new one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Plans executed against an interaction, by plan and outcome",
			},
			[]string{"plan", "outcome"},
		),
		verificationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "verification_duration_seconds",
				Help:      "Time taken to execute a plan",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to 2.6s
			},
			[]string{"plan"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Plan actions executed, by action and result kind",
			},
			[]string{"action", "result"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Generator runs, by outcome",
			},
			[]string{"outcome"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Contract store operations, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		plansLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plans_loaded",
				Help:      "Plans currently held in the plan catalog",
			},
		),
	}

	registry.MustRegister(
		c.verifications,
		c.verificationDuration,
		c.actions,
		c.generations,
		c.storeOps,
		c.plansLoaded,
	)
	return c
}

// Registry returns the registry the collectors are registered with.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ActionExecuted implements engine.Observer.
func (c *Collector) ActionExecuted(action string, result *engine.NodeResult) {
	c.actions.WithLabelValues(action, resultKind(result)).Inc()
}

// RecordVerification counts one plan execution.
func (c *Collector) RecordVerification(plan string, ok bool, duration time.Duration) {
	c.verifications.WithLabelValues(plan, outcome(ok)).Inc()
	c.verificationDuration.WithLabelValues(plan).Observe(duration.Seconds())
}

// RecordGeneration counts one generator run.
func (c *Collector) RecordGeneration(ok bool) {
	c.generations.WithLabelValues(outcome(ok)).Inc()
}

// RecordStoreOp counts one contract store operation.
func (c *Collector) RecordStoreOp(operation string, err error) {
	c.storeOps.WithLabelValues(operation, outcome(err == nil)).Inc()
}

// SetPlansLoaded sets the size of the plan catalog.
func (c *Collector) SetPlansLoaded(n int) {
	c.plansLoaded.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func resultKind(r *engine.NodeResult) string {
	switch {
	case r == nil:
		return "none"
	case r.IsError():
		return "error"
	case r.IsOK():
		return "ok"
	}
	return "value"
}
