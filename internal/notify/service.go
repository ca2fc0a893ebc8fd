package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"punchd/internal/eventbus"
	"punchd/internal/metrics"
	"punchd/internal/punch"
	rtsup "punchd/internal/runtime/supervisor"
	logx "punchd/pkg/logx"
)

// Service is the best-effort outcome delivery pipeline:
// bus subscription -> bounded queue -> worker pool -> sinks.
//
// Enqueue never blocks and delivery failures never propagate, so a hung or
// failing destination cannot stall the scheduler.
type Service struct {
	log  logx.Logger
	bus  eventbus.Bus
	met  metrics.Sink
	cfg  Config
	snk  []Sink
	lim  *rate.Limiter
	q    chan punch.Outcome
	sup  *rtsup.Supervisor
	done chan struct{}
}

func New(cfg Config, sinks []Sink, log logx.Logger, bus eventbus.Bus, met metrics.Sink) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if met == nil {
		met = metrics.NewNoopSink()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Service{
		log: log,
		bus: bus,
		met: met,
		cfg: cfg,
		snk: sinks,
		// Burst = rate per sec so short spikes don't block too hard.
		lim: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// BuildSinks constructs the configured sinks. A sink that fails to initialize
// is skipped with a warning; outcome reporting is best-effort by contract.
func BuildSinks(cfg Config, log logx.Logger) []Sink {
	var sinks []Sink
	if cfg.Webhook != nil && cfg.Webhook.URL != "" {
		sinks = append(sinks, NewWebhookSink(*cfg.Webhook))
	}
	if cfg.Telegram != nil {
		s, err := NewTelegramSink(*cfg.Telegram)
		if err != nil {
			log.Warn("telegram sink disabled", logx.Err(err))
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.Redis != nil {
		s, err := NewRedisSink(*cfg.Redis)
		if err != nil {
			log.Warn("redis sink disabled", logx.Err(err))
		} else {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

func (s *Service) Enabled() bool {
	return s.cfg.Enabled && len(s.snk) > 0
}

// Config returns the normalized config this service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// Start launches the pump and worker goroutines. Idempotent per Service value.
func (s *Service) Start(ctx context.Context) {
	if !s.Enabled() || s.sup != nil {
		return
	}
	s.q = make(chan punch.Outcome, s.cfg.QueueSize)
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))

	if s.bus != nil {
		ch, unsub := s.bus.Subscribe(s.cfg.QueueSize)
		s.sup.Go0("notify.pump", func(ctx context.Context) {
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
					if o, ok := ev.Data.(punch.Outcome); ok {
						s.Notify(o)
					}
				}
			}
		})
	}

	for i := 0; i < s.cfg.Workers; i++ {
		s.sup.Go0("notify.worker", s.worker)
	}
	s.log.Info("notifier started",
		logx.Int("workers", s.cfg.Workers),
		logx.Int("sinks", len(s.snk)),
	)
}

// Notify enqueues one outcome for delivery. It never blocks: when the queue
// is full the event is dropped and counted.
func (s *Service) Notify(o punch.Outcome) {
	if s.q == nil {
		return
	}
	select {
	case s.q <- o:
	default:
		s.met.NotifyDropped()
		s.log.Warn("notify queue full, dropping outcome", logx.String("id", o.ID))
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-s.q:
			if err := s.lim.Wait(ctx); err != nil {
				return
			}
			s.deliver(ctx, o)
		}
	}
}

func (s *Service) deliver(ctx context.Context, o punch.Outcome) {
	for _, sink := range s.snk {
		dctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := sink.Send(dctx, o)
		cancel()

		s.met.NotifyDelivery(sink.Name(), err == nil)
		if err != nil {
			// Swallowed by contract: report locally, never retry.
			s.log.Warn("outcome delivery failed",
				logx.String("sink", sink.Name()),
				logx.String("id", o.ID),
				logx.Err(err),
			)
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{
					Type: eventbus.TypeNotifyFailed,
					Data: map[string]string{"sink": sink.Name(), "id": o.ID, "err": err.Error()},
				})
			}
			continue
		}
		s.log.Debug("outcome delivered", logx.String("sink", sink.Name()), logx.String("id", o.ID))
	}
}

// Stop cancels workers and waits briefly for in-flight deliveries.
func (s *Service) Stop(ctx context.Context) {
	if s.sup == nil {
		return
	}
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	if err := s.sup.Stop(timeout); err != nil {
		s.log.Warn("notifier stop", logx.Err(err))
	}
	s.sup = nil
	s.log.Info("notifier stopped")
}
