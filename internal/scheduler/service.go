package scheduler

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"punchd/internal/eventbus"
	"punchd/internal/metrics"
	"punchd/internal/policy"
	"punchd/internal/schedule"
	rtsup "punchd/internal/runtime/supervisor"
	logx "punchd/pkg/logx"
)

func New(cfg Config, exec Executor, planner *schedule.Planner, log logx.Logger, bus eventbus.Bus, met metrics.Sink) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if met == nil {
		met = metrics.NewNoopSink()
	}
	if planner == nil {
		planner = schedule.NewPlanner()
	}
	return &Service{
		log:     log,
		cfg:     cfg,
		bus:     bus,
		met:     met,
		exec:    exec,
		planner: planner,
		timers:  map[string]*time.Timer{},
		windows: map[string]schedule.Window{},
		fired:   map[string]bool{},
		now:     time.Now,
	}
}

// Start arms today's windows and starts the midnight re-arm cron in the
// configured timezone. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.c = cron.New(cron.WithLocation(loc))

	// Day rollover: clear yesterday's marks and draw fresh jitter. Jitter is
	// re-derived once per calendar day, never reused across days.
	_, _ = s.c.AddFunc("0 0 * * *", s.armDay)
	c := s.c
	s.mu.Unlock()

	s.armDay()
	c.Start()

	s.log.Info("scheduler started",
		logx.String("tz", loc.String()),
		logx.Int("times", len(s.cfg.Times)),
		logx.String("weekdays", s.cfg.Weekdays.String()),
		logx.Duration("max_jitter", s.cfg.MaxJitter),
	)
}

// Stop halts the re-arm cron, cancels all pending one-shot timers, and waits
// briefly for in-flight firings.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}

	s.tmu.Lock()
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.tmu.Unlock()

	if sup != nil {
		timeout := 10 * time.Second
		if dl, ok := ctx.Deadline(); ok {
			if d := time.Until(dl); d > 0 && d < timeout {
				timeout = d
			}
		}
		_ = sup.Stop(timeout)
	}
	s.log.Info("scheduler stopped")
}

// Apply swaps the scheduling policy at runtime. The current day is re-armed
// with the new times and jitter bound; windows already fired today stay
// consumed so a reload can never cause a second firing.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	running := s.c != nil
	if running && oldTZ != newTZ {
		s.restartCronLocked()
	}
	s.mu.Unlock()

	if running {
		s.armDay()
	}
}

// restartCronLocked rebuilds the re-arm cron in the new location.
// Call with s.mu held.
func (s *Service) restartCronLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))
	_, _ = s.c.AddFunc("0 0 * * *", s.armDay)
	s.c.Start()
	s.log.Info("scheduler timezone changed", logx.String("tz", loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Snapshot returns the current day's armed windows, soonest first.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}

	s.tmu.Lock()
	snap := Snapshot{Timezone: loc.String(), Day: s.day.String()}
	for key, w := range s.windows {
		snap.Windows = append(snap.Windows, WindowInfo{
			Nominal:   key,
			Scheduled: w.Scheduled,
			Effective: w.Effective(),
			Offset:    w.Offset,
			Fired:     s.fired[key],
		})
	}
	s.tmu.Unlock()

	sort.Slice(snap.Windows, func(i, j int) bool {
		return snap.Windows[i].Effective.Before(snap.Windows[j].Effective)
	})
	return snap
}

// vacation returns the current blackout range (hot-reloadable).
func (s *Service) vacation() *policy.DateRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Vacation
}

func (s *Service) publish(t string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: t, Data: data})
}
