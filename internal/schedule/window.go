package schedule

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NominalTime is a configured time-of-day at which a punch is intended to
// occur, before jitter.
type NominalTime struct {
	Hour   int
	Minute int
}

// ParseNominal parses an "HH:MM" time-of-day.
func ParseNominal(s string) (NominalTime, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return NominalTime{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return NominalTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return NominalTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return NominalTime{Hour: h, Minute: m}, nil
}

func (n NominalTime) String() string {
	return fmt.Sprintf("%02d:%02d", n.Hour, n.Minute)
}

// At realizes the nominal time against day's calendar date in loc, at
// second 0 / nanosecond 0.
func (n NominalTime) At(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, n.Hour, n.Minute, 0, 0, loc)
}

// Window is one nominal time realized against one calendar day, with the
// jitter drawn for that day. A (nominal, day) pair gets exactly one Window;
// the offset is never reused across days.
type Window struct {
	Nominal   NominalTime
	Scheduled time.Time // nominal time on the realized date, pre-jitter
	Offset    time.Duration
}

// Effective returns the jittered execution instant.
func (w Window) Effective() time.Time {
	return w.Scheduled.Add(w.Offset)
}

// Planner draws per-day jitter offsets from a process-wide random source.
type Planner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPlanner() *Planner {
	return &Planner{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewPlannerSeeded is for tests that need reproducible draws.
func NewPlannerSeeded(seed int64) *Planner {
	return &Planner{rng: rand.New(rand.NewSource(seed))}
}

// PlanFor realizes nominal against day's date in loc and draws a fresh offset
// uniformly from [-maxJitter, +maxJitter). A zero maxJitter degenerates to no
// jitter.
func (p *Planner) PlanFor(nominal NominalTime, day time.Time, loc *time.Location, maxJitter time.Duration) Window {
	w := Window{
		Nominal:   nominal,
		Scheduled: nominal.At(day, loc),
	}
	if secs := int64(maxJitter / time.Second); secs > 0 {
		p.mu.Lock()
		off := p.rng.Int63n(2*secs) - secs
		p.mu.Unlock()
		w.Offset = time.Duration(off) * time.Second
	}
	return w
}
