package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/attrsync/pkg/metrics"
	"github.com/marmos91/attrsync/pkg/virattr"
)

// virAttrMetrics is the Prometheus implementation of virattr.Metrics.
type virAttrMetrics struct {
	lookups         *prometheus.CounterVec
	forceExpires    prometheus.Counter
	resolveDuration prometheus.Histogram
	resolveFailures prometheus.Counter
}

func newVirAttrMetrics() virattr.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &virAttrMetrics{
		lookups: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attrsync_virattr_lookups_total",
				Help: "Virtual attribute cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss"
		)),
		forceExpires: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "attrsync_virattr_force_expires_total",
				Help: "Cache entries force-expired after writes or resource failures",
			},
		)),
		resolveDuration: register(reg, prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "attrsync_virattr_resolve_duration_milliseconds",
				Help: "Duration of virtual attribute resolution against resources",
				Buckets: []float64{
					1,    // 1ms - local resources
					5,    // 5ms
					25,   // 25ms
					100,  // 100ms
					500,  // 500ms
					2000, // 2s - slow directories
					10000,
				},
			},
		)),
		resolveFailures: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "attrsync_virattr_resource_failures_total",
				Help: "Resource failures encountered while resolving virtual attributes",
			},
		)),
	}
}

func (m *virAttrMetrics) ObserveLookup(hit bool) {
	if hit {
		m.lookups.WithLabelValues("hit").Inc()
		return
	}
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *virAttrMetrics) RecordForceExpire() {
	m.forceExpires.Inc()
}

func (m *virAttrMetrics) ObserveResolve(duration time.Duration, failures int) {
	m.resolveDuration.Observe(float64(duration.Microseconds()) / 1000.0)
	if failures > 0 {
		m.resolveFailures.Add(float64(failures))
	}
}
