package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/metrics"
)

// connectorMetrics is the Prometheus implementation of connector.Metrics.
type connectorMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newConnectorMetrics() connector.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &connectorMetrics{
		operations: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attrsync_connector_operations_total",
				Help: "Connector round trips by resource, operation and status",
			},
			[]string{"resource", "operation", "status"},
		)),
		duration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attrsync_connector_duration_milliseconds",
				Help:    "Duration of connector round trips in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"resource", "operation"},
		)),
	}
}

func (m *connectorMetrics) ObserveFetch(resource string, duration time.Duration, err error) {
	m.observe(resource, "fetch", duration, err)
}

func (m *connectorMetrics) ObservePush(resource string, duration time.Duration, err error) {
	m.observe(resource, "push", duration, err)
}

func (m *connectorMetrics) observe(resource, op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(resource, op, status).Inc()
	m.duration.WithLabelValues(resource, op).Observe(float64(duration.Microseconds()) / 1000.0)
}
