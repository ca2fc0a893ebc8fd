package metrics

import "time"

// Sink records operational metrics for punchd.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors.
type Sink interface {
	// Scheduler / executor
	DayArmed(windows int)
	FiringOutcome(status string)
	PunchAttempts(attempts int)
	PunchDuration(d time.Duration)

	// Notifier
	NotifyDelivery(sink string, ok bool)
	NotifyDropped()
}

// FromConfig returns a prometheus-backed sink when enabled, a no-op otherwise.
func FromConfig(enabled bool) Sink {
	if enabled {
		return NewPrometheusSink(nil)
	}
	return NewNoopSink()
}
