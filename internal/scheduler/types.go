package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"punchd/internal/eventbus"
	"punchd/internal/metrics"
	"punchd/internal/policy"
	"punchd/internal/punch"
	rtsup "punchd/internal/runtime/supervisor"
	"punchd/internal/schedule"
	logx "punchd/pkg/logx"
)

// fireGrace is how far past its effective instant a window may still fire
// (process started moments too late, timer drift at day rollover). Beyond
// this the window is treated as missed and stays silent.
const fireGrace = 30 * time.Second

// Config is the validated scheduling policy. It is constructed once by the
// config layer and passed in; no component reads ambient environment state.
type Config struct {
	Times     []schedule.NominalTime
	Weekdays  policy.DaySet
	Timezone  string // IANA TZ, e.g. "America/Sao_Paulo"
	MaxJitter time.Duration
	Vacation  *policy.DateRange
}

// Executor runs one full punch sequence (authenticate + submit + retries).
type Executor interface {
	Execute(ctx context.Context) punch.Result
}

// Service is the trigger state machine. A timezone-aware cron entry re-arms
// the day at midnight; each nominal time gets a one-shot timer at its
// jittered effective instant; per-day fired marks guarantee at most one
// firing per (nominal time, calendar day).
type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config
	loc *time.Location

	bus     eventbus.Bus
	met     metrics.Sink
	exec    Executor
	planner *schedule.Planner

	c   *cron.Cron
	sup *rtsup.Supervisor

	// Armed state for the current day. fired marks are never cleared within
	// a day, including across config reloads.
	tmu     sync.Mutex
	day     policy.Date
	timers  map[string]*time.Timer
	windows map[string]schedule.Window
	fired   map[string]bool

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// WindowInfo is a point-in-time view of one armed window.
type WindowInfo struct {
	Nominal   string
	Scheduled time.Time
	Effective time.Time
	Offset    time.Duration
	Fired     bool
}

// Snapshot is a point-in-time view of the scheduler, for logging/debug.
type Snapshot struct {
	Timezone string
	Day      string
	Windows  []WindowInfo
}
