package metrics

import "github.com/marmos91/attrsync/pkg/connector"

// NewConnectorMetrics returns Prometheus-backed gateway metrics, or nil when
// metrics are not enabled. The result is meant for connector.Instrument.
func NewConnectorMetrics() connector.Metrics {
	if !IsEnabled() || newPrometheusConnectorMetrics == nil {
		return nil
	}
	return newPrometheusConnectorMetrics()
}

var newPrometheusConnectorMetrics func() connector.Metrics

// RegisterConnectorMetricsConstructor registers the Prometheus implementation.
func RegisterConnectorMetricsConstructor(constructor func() connector.Metrics) {
	newPrometheusConnectorMetrics = constructor
}
