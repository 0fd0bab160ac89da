// Package prometheus provides the Prometheus implementations behind the
// pkg/metrics constructors. Import it for side effects:
//
//	import _ "github.com/marmos91/attrsync/pkg/metrics/prometheus"
package prometheus

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/attrsync/pkg/metrics"
)

func init() {
	metrics.RegisterVirAttrMetricsConstructor(newVirAttrMetrics)
	metrics.RegisterConnectorMetricsConstructor(newConnectorMetrics)
}

// register adds c to the registry, returning the collector already
// registered under the same descriptor if there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
