package scheduler

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"punchd/internal/eventbus"
	"punchd/internal/policy"
	"punchd/internal/punch"
	"punchd/internal/schedule"
	logx "punchd/pkg/logx"
)

// armDay evaluates one scheduling cycle: it realizes every nominal time
// against today, draws fresh jitter, and sets one-shot timers at the
// effective instants. Any failure here is caught and logged; the next
// midnight re-arm gets a clean try.
func (s *Service) armDay() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("day arm panicked",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	s.mu.Lock()
	cfg := s.cfg
	loc := s.loc
	s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}

	now := s.now().In(loc)
	today := policy.DateOf(now)

	s.tmu.Lock()
	defer s.tmu.Unlock()

	// Cancel pending timers; they are replaced below.
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.windows = map[string]schedule.Window{}

	// Fired marks survive a same-day re-arm (config reload) so nothing can
	// fire twice; a new day starts clean.
	if today != s.day {
		s.day = today
		s.fired = map[string]bool{}
	}

	// Day-level gate: a non-working weekday suppresses the whole day and
	// emits nothing.
	if !cfg.Weekdays.Matches(now.Weekday()) {
		s.met.DayArmed(0)
		s.log.Info("day not armed (weekday off)",
			logx.String("day", today.String()),
			logx.String("weekday", now.Weekday().String()),
		)
		return
	}

	armed := 0
	for _, nominal := range cfg.Times {
		key := nominal.String()
		if _, dup := s.windows[key]; dup {
			continue
		}
		if s.fired[key] {
			continue
		}

		w := s.planner.PlanFor(nominal, now, loc, cfg.MaxJitter)
		eff := w.Effective()
		delay := eff.Sub(now)
		if delay < -fireGrace {
			// Effective instant is already well past (late start); stay silent
			// and consume the day for this nominal time.
			s.fired[key] = true
			s.log.Info("window missed",
				logx.String("nominal", key),
				logx.Time("effective", eff),
			)
			continue
		}
		if delay < 0 {
			delay = 0
		}

		s.windows[key] = w
		localKey := key
		localWindow := w
		s.timers[key] = time.AfterFunc(delay, func() {
			s.fire(localKey, localWindow)
		})
		armed++
		s.log.Debug("window armed",
			logx.String("nominal", key),
			logx.Time("effective", eff),
			logx.Duration("offset", w.Offset),
		)
	}

	s.met.DayArmed(armed)
	s.publish(eventbus.TypeDayArmed, map[string]any{"day": today.String(), "windows": armed})
	s.log.Info("day armed", logx.String("day", today.String()), logx.Int("windows", armed))
}

// fire consumes the (nominal, day) mark and dispatches the firing as an
// independent unit of work so a slow or retrying punch never delays other
// nominal times.
func (s *Service) fire(key string, w schedule.Window) {
	s.tmu.Lock()
	if s.fired[key] {
		s.tmu.Unlock()
		return
	}
	s.fired[key] = true
	delete(s.timers, key)
	s.tmu.Unlock()

	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return
	}
	sup.Go0("firing."+key, func(ctx context.Context) {
		s.runFiring(ctx, w)
	})
}

// runFiring applies the vacation gate and executes the punch, then emits
// exactly one outcome. Executor failures are reported, never fatal.
func (s *Service) runFiring(ctx context.Context, w schedule.Window) {
	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}

	o := punch.Outcome{
		ID:            uuid.NewString(),
		ScheduledTime: w.Scheduled,
		OffsetSeconds: int(w.Offset / time.Second),
	}

	today := policy.DateOf(s.now().In(loc))
	if policy.IsBlackout(today, s.vacation()) {
		o.Status = punch.StatusSkipped
		o.Reason = punch.SkipReasonVacation
		s.emit(o)
		return
	}

	start := s.now().In(loc)
	res := s.exec.Execute(ctx)
	executed := s.now().In(loc)
	o.ExecutedTime = &executed
	o.Attempts = res.Attempts

	s.met.PunchAttempts(res.Attempts)
	s.met.PunchDuration(executed.Sub(start))

	if res.OK {
		o.Status = punch.StatusSuccess
		o.Response = res.Payload
	} else {
		o.Status = punch.StatusError
		if res.Err != nil {
			o.Error = res.Err.Error()
		} else {
			o.Error = "punch failed"
		}
	}
	s.emit(o)
}

func (s *Service) emit(o punch.Outcome) {
	s.met.FiringOutcome(string(o.Status))
	switch o.Status {
	case punch.StatusSuccess:
		s.log.Info("punch succeeded",
			logx.String("id", o.ID),
			logx.Time("scheduled", o.ScheduledTime),
			logx.Int("offset_s", o.OffsetSeconds),
			logx.Int("attempts", o.Attempts),
		)
	case punch.StatusSkipped:
		s.log.Info("punch skipped",
			logx.String("id", o.ID),
			logx.Time("scheduled", o.ScheduledTime),
			logx.String("reason", o.Reason),
		)
	default:
		s.log.Error("punch failed",
			logx.String("id", o.ID),
			logx.Time("scheduled", o.ScheduledTime),
			logx.Int("attempts", o.Attempts),
			logx.String("err", o.Error),
		)
	}
	s.publish(eventbus.TypePunchOutcome, o)
}
