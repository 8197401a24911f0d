// Package telemetry exposes the engine's counters as Prometheus collectors
// on a private registry. The simulator has no network surface, so the
// registry is gathered in-process (stats publishers, tests) instead of being
// served over HTTP.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersProcessed prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersCancelled prometheus.Counter
	TradesExecuted  *prometheus.CounterVec
	VolumeTraded    *prometheus.CounterVec
	ActiveOrders    prometheus.Gauge
	ActiveSymbols   prometheus.Gauge
	MatchLatency    prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		OrdersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sim_orders_processed_total",
			Help: "Total number of orders processed by the matcher",
		}),
		OrdersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sim_orders_rejected_total",
			Help: "Total number of submissions rejected by validation",
		}),
		OrdersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "sim_orders_cancelled_total",
			Help: "Total number of orders cancelled while resting",
		}),
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_trades_total",
			Help: "Total number of trades by symbol",
		}, []string{"symbol"}),
		VolumeTraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_volume_shares_total",
			Help: "Total traded volume in shares by symbol",
		}, []string{"symbol"}),
		ActiveOrders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sim_active_orders",
			Help: "Orders currently resting or being matched",
		}),
		ActiveSymbols: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sim_active_symbols",
			Help: "Symbols with an instantiated order book",
		}),
		MatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sim_match_latency_seconds",
			Help:    "Wall time from dequeue to end of match for one order",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
	}
}

// Gather snapshots every registered metric family.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
