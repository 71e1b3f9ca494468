package dock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the board's prometheus collectors.
type Metrics struct {
	Transitions  *prometheus.CounterVec
	Conflicts    prometheus.Counter
	QueueDepth   *prometheus.GaugeVec
	PassDuration prometheus.Histogram
}

// NewMetrics registers the board collectors on reg. A nil reg leaves them
// unregistered, which suits tests that build several engines.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdock_transitions_total",
				Help: "Phase changes attempted by the board, by kind and result",
			},
			[]string{"kind", "result"},
		),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "dealdock_conflicts_found_total",
			Help: "Reference code conflicts found by conflict checks",
		}),
		QueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dealdock_queue_depth",
				Help: "Entries waiting in each automation queue after a pass",
			},
			[]string{"queue"},
		),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dealdock_pass_duration_seconds",
			Help:    "Duration of board passes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
}
