package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are swallowed; a duplicate registration (tests creating
// multiple sinks) must not take the daemon down.
type PrometheusSink struct {
	daysArmedTotal  prometheus.Counter
	windowsArmed    prometheus.Gauge
	firingsTotal    *prometheus.CounterVec
	attemptsTotal   *prometheus.CounterVec
	punchDuration   prometheus.Histogram
	deliveriesTotal *prometheus.CounterVec
	droppedTotal    prometheus.Counter
}

// NewPrometheusSink creates a sink registered on reg (DefaultRegisterer when
// reg is nil).
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		daysArmedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "punchd_days_armed_total",
			Help: "Total number of calendar days armed by the scheduler.",
		}),
		windowsArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "punchd_windows_armed",
			Help: "Trigger windows armed for the current day.",
		}),
		firingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "punchd_firings_total",
			Help: "Firing outcomes by status.",
		}, []string{"status"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "punchd_punch_attempts_total",
			Help: "Executor attempt counts per firing.",
		}, []string{"attempts"}),
		punchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "punchd_punch_duration_seconds",
			Help:    "Wall time of one full punch execution including retries.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "punchd_notify_deliveries_total",
			Help: "Notification delivery results by sink.",
		}, []string{"sink", "result"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "punchd_notify_dropped_total",
			Help: "Outcome events dropped because the notify queue was full.",
		}),
	}

	for _, c := range []prometheus.Collector{
		s.daysArmedTotal, s.windowsArmed, s.firingsTotal, s.attemptsTotal,
		s.punchDuration, s.deliveriesTotal, s.droppedTotal,
	} {
		_ = reg.Register(c)
	}
	return s
}

func (s *PrometheusSink) DayArmed(windows int) {
	s.daysArmedTotal.Inc()
	s.windowsArmed.Set(float64(windows))
}

func (s *PrometheusSink) FiringOutcome(status string) {
	s.firingsTotal.WithLabelValues(status).Inc()
}

func (s *PrometheusSink) PunchAttempts(attempts int) {
	s.attemptsTotal.WithLabelValues(strconv.Itoa(attempts)).Inc()
}

func (s *PrometheusSink) PunchDuration(d time.Duration) {
	s.punchDuration.Observe(d.Seconds())
}

func (s *PrometheusSink) NotifyDelivery(sink string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	s.deliveriesTotal.WithLabelValues(sink, result).Inc()
}

func (s *PrometheusSink) NotifyDropped() {
	s.droppedTotal.Inc()
}
