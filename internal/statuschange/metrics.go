package statuschange

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_notifier_events_total",
			Help: "Total number of handled user change events by outcome and skip reason.",
		},
		[]string{"outcome", "reason"},
	)

	handleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "status_notifier_handle_duration_seconds",
			Help:    "Time spent handling a single user change event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func observeOutcome(outcome Outcome, elapsed time.Duration) {
	eventsTotal.WithLabelValues(string(outcome.Kind), string(outcome.Reason)).Inc()
	handleDuration.WithLabelValues(string(outcome.Kind)).Observe(elapsed.Seconds())
}
