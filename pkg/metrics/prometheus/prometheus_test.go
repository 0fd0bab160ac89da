package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/attrsync/pkg/metrics"
)

func TestConstructorsNilWhenDisabled(t *testing.T) {
	metrics.Reset()

	assert.Nil(t, metrics.NewVirAttrMetrics())
	assert.Nil(t, metrics.NewConnectorMetrics())
}

func TestVirAttrMetrics(t *testing.T) {
	metrics.Reset()
	t.Cleanup(metrics.Reset)
	metrics.InitRegistry()

	m := metrics.NewVirAttrMetrics()
	require.NotNil(t, m)

	m.ObserveLookup(true)
	m.ObserveLookup(false)
	m.ObserveLookup(false)
	m.RecordForceExpire()
	m.ObserveResolve(3*time.Millisecond, 2)

	impl := m.(*virAttrMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.lookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(impl.lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.forceExpires))
	assert.Equal(t, 2.0, testutil.ToFloat64(impl.resolveFailures))
}

func TestConnectorMetricsReuseRegistration(t *testing.T) {
	metrics.Reset()
	t.Cleanup(metrics.Reset)
	metrics.InitRegistry()

	first := metrics.NewConnectorMetrics()
	second := metrics.NewConnectorMetrics()
	require.NotNil(t, first)
	require.NotNil(t, second)

	first.ObserveFetch("ldap", time.Millisecond, nil)
	second.ObserveFetch("ldap", time.Millisecond, errors.New("down"))
	second.ObservePush("ldap", time.Millisecond, nil)

	impl := second.(*connectorMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operations.WithLabelValues("ldap", "fetch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operations.WithLabelValues("ldap", "fetch", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operations.WithLabelValues("ldap", "push", "success")))
}
