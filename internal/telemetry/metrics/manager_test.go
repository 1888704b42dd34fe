package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.CounterObservations.WithLabelValues("growth", "add").Inc()
	m.CounterObservations.WithLabelValues("growth", "add").Inc()
	m.CounterExports.WithLabelValues("csv").Inc()
	m.GaugeBabies.Set(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterObservations.WithLabelValues("growth", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterExports.WithLabelValues("csv")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GaugeBabies))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}
	require.Contains(t, byName, "babygrowth_test_server_observations")
	assert.Equal(t, dto.MetricType_COUNTER, byName["babygrowth_test_server_observations"].GetType())
	require.Contains(t, byName, "babygrowth_test_server_babies")
	assert.Equal(t, dto.MetricType_GAUGE, byName["babygrowth_test_server_babies"].GetType())
}

func TestSetupPrometheus(t *testing.T) {
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_collector_total"})
	reg := SetupPrometheus(extra)
	extra.Inc()

	count, err := testutil.GatherAndCount(reg, "extra_collector_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
