package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(ordersTotal, panelRequestDuration) }

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smm_orders_total",
			Help: "Orders attempted against SMM panels, by source and outcome.",
		},
		[]string{"source", "outcome"}, // source: manual|auto, outcome: ok|<panel error kind>
	)

	panelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smm_panel_request_duration_seconds",
			Help:    "Latency of SMM panel HTTP calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"action", "outcome"},
	)
)

func IncOrder(source, outcome string) {
	ordersTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func ObservePanelRequest(action, outcome string, d time.Duration) {
	panelRequestDuration.WithLabelValues(norm(action), norm(outcome)).Observe(d.Seconds())
}
