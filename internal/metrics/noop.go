package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (n *NoopSink) DayArmed(windows int)             {}
func (n *NoopSink) FiringOutcome(status string)      {}
func (n *NoopSink) PunchAttempts(attempts int)       {}
func (n *NoopSink) PunchDuration(d time.Duration)    {}
func (n *NoopSink) NotifyDelivery(sink string, ok bool) {}
func (n *NoopSink) NotifyDropped()                   {}
