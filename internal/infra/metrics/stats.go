package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(usersTotal, monitoredChannels) }

var (
	usersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_total",
			Help: "Stored user configs, split by whether the panel credential is complete.",
		},
		[]string{"configured"}, // "true" | "false"
	)

	monitoredChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitored_channels",
			Help: "Channel subscriptions across all users.",
		},
	)
)

func SetUserTotals(total, configured int) {
	usersTotal.WithLabelValues("true").Set(float64(configured))
	usersTotal.WithLabelValues("false").Set(float64(total - configured))
}

func SetMonitoredChannels(n int) {
	monitoredChannels.Set(float64(n))
}
