package policy

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestIsBlackoutBoundaries(t *testing.T) {
	t.Parallel()
	r := &DateRange{
		Start: mustDate(t, "2025-08-01"),
		End:   mustDate(t, "2025-08-15"),
	}

	tests := []struct {
		name string
		day  string
		want bool
	}{
		{name: "before", day: "2025-07-31", want: false},
		{name: "first day", day: "2025-08-01", want: true},
		{name: "inside", day: "2025-08-10", want: true},
		{name: "last day", day: "2025-08-15", want: true},
		{name: "after", day: "2025-08-16", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlackout(mustDate(t, tt.day), r); got != tt.want {
				t.Fatalf("IsBlackout(%s) = %v, want %v", tt.day, got, tt.want)
			}
		})
	}
}

func TestIsBlackoutNilRange(t *testing.T) {
	t.Parallel()
	if IsBlackout(mustDate(t, "2025-08-10"), nil) {
		t.Fatal("nil range must never blackout")
	}
}

func TestIsBlackoutInvertedRange(t *testing.T) {
	t.Parallel()
	// Start after End is an empty window, not a wrap-around.
	r := &DateRange{
		Start: mustDate(t, "2025-08-15"),
		End:   mustDate(t, "2025-08-01"),
	}
	for _, day := range []string{"2025-07-31", "2025-08-01", "2025-08-08", "2025-08-15", "2025-08-16"} {
		if IsBlackout(mustDate(t, day), r) {
			t.Fatalf("inverted range matched %s", day)
		}
	}
}

func TestDateOfUsesOwnLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+9", 9*3600)
	// 23:30 UTC on the 1st is already the 2nd in UTC+9.
	utc := time.Date(2025, 8, 1, 23, 30, 0, 0, time.UTC)
	if got := DateOf(utc.In(loc)); got != (Date{Year: 2025, Month: time.August, Day: 2}) {
		t.Fatalf("DateOf = %v, want 2025-08-02", got)
	}
}

func TestDateBefore(t *testing.T) {
	t.Parallel()
	a := mustDate(t, "2024-12-31")
	b := mustDate(t, "2025-01-01")
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("Before ordering broken for %v and %v", a, b)
	}
	if a.Before(a) {
		t.Fatal("a date must not be before itself")
	}
}
