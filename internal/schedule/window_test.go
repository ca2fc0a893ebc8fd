package schedule

import (
	"testing"
	"time"
)

func TestParseNominalVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want NominalTime
	}{
		{raw: "08:00", want: NominalTime{Hour: 8}},
		{raw: "23:59", want: NominalTime{Hour: 23, Minute: 59}},
		{raw: "0:5", want: NominalTime{Minute: 5}},
		{raw: " 12:30 ", want: NominalTime{Hour: 12, Minute: 30}},
	}
	for _, tt := range tests {
		got, err := ParseNominal(tt.raw)
		if err != nil {
			t.Fatalf("ParseNominal(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseNominal(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	for _, raw := range []string{"24:00", "12:60", "12", "a:b", "12:30:00", ""} {
		if _, err := ParseNominal(raw); err == nil {
			t.Fatalf("ParseNominal(%q): expected error", raw)
		}
	}
}

func TestNominalAt(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	day := time.Date(2025, 8, 4, 15, 42, 7, 123, loc)
	got := NominalTime{Hour: 8, Minute: 30}.At(day, loc)
	want := time.Date(2025, 8, 4, 8, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("At = %v, want %v", got, want)
	}
}

func TestPlanForOffsetBounds(t *testing.T) {
	t.Parallel()
	p := NewPlannerSeeded(1)
	day := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	nominal := NominalTime{Hour: 8}
	max := 300 * time.Second

	var sum time.Duration
	const draws = 10000
	for i := 0; i < draws; i++ {
		w := p.PlanFor(nominal, day, time.UTC, max)
		if w.Offset < -max || w.Offset >= max {
			t.Fatalf("offset %v outside [-%v, +%v)", w.Offset, max, max)
		}
		if w.Offset%time.Second != 0 {
			t.Fatalf("offset %v not whole seconds", w.Offset)
		}
		sum += w.Offset
	}
	// Uniform over [-300s, 300s) has mean -0.5s; anything within a few
	// seconds of zero rules out a sign or range bug.
	mean := sum / draws
	if mean < -10*time.Second || mean > 10*time.Second {
		t.Fatalf("mean offset %v too far from zero", mean)
	}
}

func TestPlanForZeroJitter(t *testing.T) {
	t.Parallel()
	p := NewPlannerSeeded(7)
	day := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	w := p.PlanFor(NominalTime{Hour: 8}, day, time.UTC, 0)
	if w.Offset != 0 {
		t.Fatalf("zero max jitter drew offset %v", w.Offset)
	}
	if !w.Effective().Equal(w.Scheduled) {
		t.Fatal("effective time must equal scheduled with no jitter")
	}
}

func TestWindowEffective(t *testing.T) {
	t.Parallel()
	sched := time.Date(2025, 8, 4, 8, 0, 0, 0, time.UTC)
	w := Window{
		Nominal:   NominalTime{Hour: 8},
		Scheduled: sched,
		Offset:    -148 * time.Second,
	}
	want := time.Date(2025, 8, 4, 7, 57, 32, 0, time.UTC)
	if !w.Effective().Equal(want) {
		t.Fatalf("Effective = %v, want %v", w.Effective(), want)
	}
}
