package policy

import (
	"fmt"
	"time"
)

// Date is a calendar date, compared in the configured timezone's calendar.
// Time-of-day never participates in vacation checks.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the calendar date of t (in t's own location).
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a "YYYY-MM-DD" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// DateRange is an inclusive blackout window.
//
// A range with Start > End never matches any date. That is a validation gap
// in some deployed configs, and the behavior is kept rather than reinterpreted
// as a wrap-around window.
type DateRange struct {
	Start Date
	End   Date
}

// IsBlackout reports whether today falls inside the optional vacation range,
// inclusive on both ends. A nil range means no vacation is configured.
func IsBlackout(today Date, r *DateRange) bool {
	if r == nil {
		return false
	}
	if today.Before(r.Start) {
		return false
	}
	if r.End.Before(today) {
		return false
	}
	return true
}
