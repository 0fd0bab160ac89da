package metrics

import "github.com/marmos91/attrsync/pkg/virattr"

// NewVirAttrMetrics returns Prometheus-backed virtual attribute cache metrics,
// or nil when metrics are not enabled.
//
//	metrics.InitRegistry()
//	cache := virattr.NewCache(store, ttl, virattr.WithMetrics(metrics.NewVirAttrMetrics()))
func NewVirAttrMetrics() virattr.Metrics {
	if !IsEnabled() || newPrometheusVirAttrMetrics == nil {
		return nil
	}
	return newPrometheusVirAttrMetrics()
}

// newPrometheusVirAttrMetrics is set by pkg/metrics/prometheus.
var newPrometheusVirAttrMetrics func() virattr.Metrics

// RegisterVirAttrMetricsConstructor registers the Prometheus implementation.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterVirAttrMetricsConstructor(constructor func() virattr.Metrics) {
	newPrometheusVirAttrMetrics = constructor
}
