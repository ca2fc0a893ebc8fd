package punch

import (
	"context"
	"time"
)

// Token is an opaque session credential returned by Authenticate.
// It is never shared across concurrent firings; every attempt gets its own.
type Token string

// Authenticator logs in against the remote platform.
type Authenticator interface {
	Authenticate(ctx context.Context) (Token, error)
}

// Submitter submits one punch using a previously obtained token.
// The returned payload is the platform's success response, kept opaque.
type Submitter interface {
	SubmitPunch(ctx context.Context, tok Token) (string, error)
}

// Status classifies an outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// SkipReasonVacation is the reason recorded when the vacation window
// suppresses a firing.
const SkipReasonVacation = "vacation_period"

// Outcome is the structured record emitted for every firing. It is handed to
// the notifier and the history recorder, then discarded; it is never used to
// drive scheduling decisions.
type Outcome struct {
	ID            string     `json:"id"`
	Status        Status     `json:"status"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	ExecutedTime  *time.Time `json:"executed_time,omitempty"`
	OffsetSeconds int        `json:"offset_seconds"`
	Response      string     `json:"response,omitempty"`
	Error         string     `json:"error,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}
