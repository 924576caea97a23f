package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(channelPostsTotal, dispatchSubscribers, dispatchDroppedTotal) }

var (
	channelPostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_posts_total",
			Help: "Channel posts received, by channel kind (public|private).",
		},
		[]string{"kind"},
	)

	dispatchSubscribers = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_matched_subscribers",
			Help:    "Number of subscribers matched per channel post.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	dispatchDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_tasks_dropped_total",
			Help: "Auto-dispatch tasks dropped because the worker pool was saturated.",
		},
	)
)

func IncChannelPost(kind string) {
	channelPostsTotal.WithLabelValues(norm(kind)).Inc()
}

func ObserveMatchedSubscribers(n int) {
	dispatchSubscribers.Observe(float64(n))
}

func IncDispatchDropped() {
	dispatchDroppedTotal.Inc()
}
