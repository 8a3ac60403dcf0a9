package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.WithLabelValues(labels...).(prometheus.Counter).Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegistryCountersAccumulate(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.IncTicks("app1")
	reg.IncTicks("app1")
	reg.IncMaint("app1")
	reg.AddRetry("app1", 5)
	reg.AddRetry("app1", -1) // must be a no-op

	assert.Equal(t, 2.0, counterValue(t, reg.Ticks, "app1"))
	assert.Equal(t, 1.0, counterValue(t, reg.Maint, "app1"))
	assert.Equal(t, 5.0, counterValue(t, reg.Retry, "app1"))
}

func TestRegistrySetDatabaseCount(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	reg.SetDatabaseCount(3)

	var m dto.Metric
	require.NoError(t, reg.Databases.Write(&m))
	assert.Equal(t, 3.0, m.GetGauge().GetValue())
}
