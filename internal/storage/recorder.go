package storage

import (
	"context"
	"time"

	"punchd/internal/eventbus"
	"punchd/internal/punch"
	rtsup "punchd/internal/runtime/supervisor"
	logx "punchd/pkg/logx"
)

// Recorder subscribes to outcome events and appends them to the store.
// Persistence is observational only; a write failure is logged and the event
// is lost, matching the notifier's best-effort stance.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
	sup   *rtsup.Supervisor
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log}
}

func (r *Recorder) Start(ctx context.Context) {
	if r.store == nil || r.bus == nil || r.sup != nil {
		return
	}
	ch, unsub := r.bus.Subscribe(64)
	r.sup = rtsup.New(ctx, rtsup.WithLogger(r.log))
	r.sup.Go0("storage.recorder", func(ctx context.Context) {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Type != eventbus.TypePunchOutcome {
					continue
				}
				o, ok := ev.Data.(punch.Outcome)
				if !ok {
					continue
				}
				wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := r.store.AppendOutcome(wctx, o)
				cancel()
				if err != nil {
					r.log.Warn("outcome persist failed", logx.String("id", o.ID), logx.Err(err))
				}
			}
		}
	})
}

func (r *Recorder) Stop() {
	if r.sup == nil {
		return
	}
	_ = r.sup.Stop(2 * time.Second)
	r.sup = nil
}
