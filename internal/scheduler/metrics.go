package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's Prometheus collectors.
type Metrics struct {
	ticks      prometheus.Counter
	tickErrors prometheus.Counter
	outcomes   *prometheus.CounterVec
	tickDur    prometheus.Histogram
}

// NewMetrics registers collectors on reg. A nil reg yields unregistered
// collectors, which is what tests that do not scrape want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "reminder_ticks_total", Help: "Scheduler ticks started",
		}),
		tickErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "reminder_tick_errors_total", Help: "Ticks aborted by a roster error or a panic",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_evaluations_total", Help: "Per-account evaluations by outcome",
		}, []string{"outcome"}),
		tickDur: f.NewHistogram(prometheus.HistogramOpts{
			Name: "reminder_tick_duration_seconds", Help: "Scheduler tick duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
