package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan outcomes.
const (
	OutcomeRecorded  = "recorded"
	OutcomeExisting  = "existing"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics groups the engine's collectors so tests can register them on a
// private registry.
type Metrics struct {
	Scans         *prometheus.CounterVec
	Records       *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Latency       prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateattend",
			Name:      "scans_total",
			Help:      "Scan events processed, by source and outcome.",
		}, []string{"source", "outcome"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateattend",
			Name:      "records_total",
			Help:      "Attendance records created.",
		}, []string{"session", "direction", "status"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateattend",
			Name:      "notifications_total",
			Help:      "Notifications dispatched, by result.",
		}, []string{"result"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gateattend",
			Name:      "scan_processing_seconds",
			Help:      "Time from token receipt to pipeline completion.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Scans, m.Records, m.Notifications, m.Latency)
	}
	return m
}

// ObserveScan counts one scan and its latency. Safe on a nil receiver.
func (m *Metrics) ObserveScan(source, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(source, outcome).Inc()
	m.Latency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRecord(session, direction, status string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(session, direction, status).Inc()
}

func (m *Metrics) ObserveNotification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}
