package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsGather(t *testing.T) {
	m := New()

	m.OrdersProcessed.Inc()
	m.OrdersProcessed.Inc()
	m.OrdersRejected.Inc()
	m.TradesExecuted.WithLabelValues("AAPL").Inc()
	m.VolumeTraded.WithLabelValues("AAPL").Add(100)
	m.ActiveOrders.Set(7)
	m.ActiveSymbols.Set(2)
	m.MatchLatency.Observe(0.0005)

	families, err := m.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				byName[mf.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				byName[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, byName["sim_orders_processed_total"])
	assert.Equal(t, 1.0, byName["sim_orders_rejected_total"])
	assert.Equal(t, 1.0, byName["sim_trades_total"])
	assert.Equal(t, 100.0, byName["sim_volume_shares_total"])
	assert.Equal(t, 7.0, byName["sim_active_orders"])
	assert.Equal(t, 2.0, byName["sim_active_symbols"])
}

func TestMetricsRegistriesAreIsolated(t *testing.T) {
	a := New()
	b := New()

	a.OrdersProcessed.Inc()

	families, err := b.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "sim_orders_processed_total" {
			for _, metric := range mf.GetMetric() {
				assert.Equal(t, 0.0, metric.GetCounter().GetValue())
			}
		}
	}
}

func TestHistogramRegistered(t *testing.T) {
	m := New()
	m.MatchLatency.Observe(0.002)

	families, err := m.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "sim_match_latency_seconds" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}
