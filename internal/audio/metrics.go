package audio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the capture pipeline
type Metrics struct {
	// Drain metrics
	Drains               prometheus.Counter
	DrainedBytes         prometheus.Counter
	DrainSize            prometheus.Histogram
	DroppedNotifications prometheus.Counter

	// Lifecycle metrics
	Transitions *prometheus.CounterVec
	Finalized   prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Drains: factory.NewCounter(prometheus.CounterOpts{
			Name: "wavcapture_drains_total",
			Help: "Total number of drains that wrote audio data",
		}),
		DrainedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "wavcapture_drained_bytes_total",
			Help: "Total number of PCM bytes written to WAV files",
		}),
		DrainSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wavcapture_drain_size_bytes",
			Help:    "Size of each drain in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		}),
		DroppedNotifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "wavcapture_dropped_notifications_total",
			Help: "Total number of notifications dropped because the drain queue was full",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wavcapture_recorder_transitions_total",
			Help: "Total number of recorder state transitions by target state",
		}, []string{"state"}),
		Finalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "wavcapture_files_finalized_total",
			Help: "Total number of WAV files whose header was finalized",
		}),
	}
}

func (m *Metrics) drained(n int) {
	if m == nil {
		return
	}
	m.Drains.Inc()
	m.DrainedBytes.Add(float64(n))
	m.DrainSize.Observe(float64(n))
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.DroppedNotifications.Inc()
}

func (m *Metrics) transition(s State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) finalized() {
	if m == nil {
		return
	}
	m.Finalized.Inc()
}
