package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"punchd/internal/eventbus"
	"punchd/internal/policy"
	"punchd/internal/punch"
	"punchd/internal/schedule"
	logx "punchd/pkg/logx"
)

var errFailed = errors.New("remote rejected punch")

type countingExecutor struct {
	calls  atomic.Int64
	result punch.Result
}

func (e *countingExecutor) Execute(ctx context.Context) punch.Result {
	e.calls.Add(1)
	return e.result
}

func allDays(t *testing.T) policy.DaySet {
	t.Helper()
	set, err := policy.ParseWeekdays("*")
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	return set
}

// fixNow pins the service clock to a fixed instant in UTC.
func fixNow(s *Service, at time.Time) {
	s.now = func() time.Time { return at }
	s.loc = time.UTC
}

func waitOutcome(t *testing.T, events <-chan eventbus.Event, timeout time.Duration) punch.Outcome {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-events:
			if e.Type != eventbus.TypePunchOutcome {
				continue
			}
			o, ok := e.Data.(punch.Outcome)
			if !ok {
				t.Fatalf("outcome event carries %T", e.Data)
			}
			return o
		case <-deadline:
			t.Fatal("timed out waiting for outcome event")
		}
	}
}

func TestFiresOnceAndEmitsSuccess(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	exec := &countingExecutor{result: punch.Result{OK: true, Payload: "done", Attempts: 1}}

	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: allDays(t),
		Timezone: "UTC",
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), bus, nil)
	// 50ms before the effective instant, so the armed timer fires quickly.
	fixNow(s, time.Date(2025, 8, 4, 7, 59, 59, 950_000_000, time.UTC))

	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	o := waitOutcome(t, events, 5*time.Second)
	if o.Status != punch.StatusSuccess {
		t.Fatalf("Status = %s, want success", o.Status)
	}
	if o.ID == "" {
		t.Fatal("outcome has no id")
	}
	if o.Response != "done" {
		t.Fatalf("Response = %q, want done", o.Response)
	}
	if o.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", o.Attempts)
	}
	if o.ExecutedTime == nil {
		t.Fatal("success outcome must carry executed time")
	}
	if got := exec.calls.Load(); got != 1 {
		t.Fatalf("executor calls = %d, want 1", got)
	}
}

func TestReloadCannotDoubleFire(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	exec := &countingExecutor{result: punch.Result{OK: true, Attempts: 1}}

	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: allDays(t),
		Timezone: "UTC",
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), bus, nil)
	fixNow(s, time.Date(2025, 8, 4, 7, 59, 59, 950_000_000, time.UTC))

	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	waitOutcome(t, events, 5*time.Second)

	// Re-arm the same day; the consumed mark must keep the window closed.
	s.Apply(cfg)

	select {
	case e := <-events:
		if e.Type == eventbus.TypePunchOutcome {
			t.Fatal("reload produced a second firing")
		}
	case <-time.After(500 * time.Millisecond):
	}
	if got := exec.calls.Load(); got != 1 {
		t.Fatalf("executor calls = %d, want 1", got)
	}
}

func TestVacationSkipsWithoutExecuting(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	exec := &countingExecutor{result: punch.Result{OK: true, Attempts: 1}}

	vac := &policy.DateRange{
		Start: policy.Date{Year: 2025, Month: time.August, Day: 1},
		End:   policy.Date{Year: 2025, Month: time.August, Day: 15},
	}
	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: allDays(t),
		Timezone: "UTC",
		Vacation: vac,
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), bus, nil)
	fixNow(s, time.Date(2025, 8, 4, 7, 59, 59, 950_000_000, time.UTC))

	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	o := waitOutcome(t, events, 5*time.Second)
	if o.Status != punch.StatusSkipped {
		t.Fatalf("Status = %s, want skipped", o.Status)
	}
	if o.Reason != punch.SkipReasonVacation {
		t.Fatalf("Reason = %q, want %q", o.Reason, punch.SkipReasonVacation)
	}
	if o.ExecutedTime != nil {
		t.Fatal("skipped outcome must not carry executed time")
	}
	if got := exec.calls.Load(); got != 0 {
		t.Fatalf("executor calls = %d, want 0", got)
	}
}

func TestOffWeekdayArmsNothing(t *testing.T) {
	t.Parallel()
	exec := &countingExecutor{}
	days, err := policy.ParseWeekdays("0,6")
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: days,
		Timezone: "UTC",
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), eventbus.New(), nil)
	// 2025-08-04 is a Monday.
	fixNow(s, time.Date(2025, 8, 4, 7, 0, 0, 0, time.UTC))

	s.armDay()

	snap := s.Snapshot()
	if len(snap.Windows) != 0 {
		t.Fatalf("armed %d windows on an off day", len(snap.Windows))
	}
	if got := exec.calls.Load(); got != 0 {
		t.Fatalf("executor calls = %d, want 0", got)
	}
}

func TestMissedWindowStaysSilent(t *testing.T) {
	t.Parallel()
	exec := &countingExecutor{}
	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: allDays(t),
		Timezone: "UTC",
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), eventbus.New(), nil)
	// 61s past the effective instant, beyond the grace window.
	fixNow(s, time.Date(2025, 8, 4, 8, 1, 1, 0, time.UTC))

	s.armDay()

	snap := s.Snapshot()
	if len(snap.Windows) != 0 {
		t.Fatalf("missed window still armed: %+v", snap.Windows)
	}
	s.tmu.Lock()
	consumed := s.fired["08:00"]
	s.tmu.Unlock()
	if !consumed {
		t.Fatal("missed window must consume the day")
	}
}

func TestLateStartWithinGraceFires(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	exec := &countingExecutor{result: punch.Result{OK: true, Attempts: 1}}
	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: allDays(t),
		Timezone: "UTC",
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), bus, nil)
	// 20s late: inside the grace window, fires immediately.
	fixNow(s, time.Date(2025, 8, 4, 8, 0, 20, 0, time.UTC))

	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	o := waitOutcome(t, events, 5*time.Second)
	if o.Status != punch.StatusSuccess {
		t.Fatalf("Status = %s, want success", o.Status)
	}
}

func TestFailureOutcomeCarriesError(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	exec := &countingExecutor{result: punch.Result{Attempts: 3, Err: errFailed}}
	cfg := Config{
		Times:    []schedule.NominalTime{{Hour: 8}},
		Weekdays: allDays(t),
		Timezone: "UTC",
	}
	s := New(cfg, exec, schedule.NewPlannerSeeded(1), logx.Nop(), bus, nil)
	fixNow(s, time.Date(2025, 8, 4, 7, 59, 59, 950_000_000, time.UTC))

	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	o := waitOutcome(t, events, 5*time.Second)
	if o.Status != punch.StatusError {
		t.Fatalf("Status = %s, want error", o.Status)
	}
	if o.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", o.Attempts)
	}
	if o.Error != errFailed.Error() {
		t.Fatalf("Error = %q, want %q", o.Error, errFailed)
	}
}

func TestSnapshotOrdersByEffective(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Times:     []schedule.NominalTime{{Hour: 17}, {Hour: 8}, {Hour: 12, Minute: 30}},
		Weekdays:  allDays(t),
		Timezone:  "UTC",
		MaxJitter: 300 * time.Second,
	}
	s := New(cfg, &countingExecutor{}, schedule.NewPlannerSeeded(42), logx.Nop(), eventbus.New(), nil)
	fixNow(s, time.Date(2025, 8, 4, 0, 30, 0, 0, time.UTC))

	s.armDay()
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	if len(snap.Windows) != 3 {
		t.Fatalf("armed %d windows, want 3", len(snap.Windows))
	}
	for i := 1; i < len(snap.Windows); i++ {
		if snap.Windows[i].Effective.Before(snap.Windows[i-1].Effective) {
			t.Fatalf("snapshot not sorted: %v before %v",
				snap.Windows[i].Effective, snap.Windows[i-1].Effective)
		}
	}
	for _, w := range snap.Windows {
		if off := w.Effective.Sub(w.Scheduled); off < -300*time.Second || off >= 300*time.Second {
			t.Fatalf("offset %v outside jitter bound", off)
		}
	}
}
