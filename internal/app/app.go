// Package app wires configuration, logging, the scheduler, the notifier,
// storage, and observability into one daemon lifecycle.
package app

import (
	"context"
	"reflect"
	"time"

	"punchd/internal/config"
	"punchd/internal/eventbus"
	"punchd/internal/metrics"
	"punchd/internal/notify"
	obsmetrics "punchd/internal/observability/metrics"
	"punchd/internal/punch"
	"punchd/internal/remote"
	rtsup "punchd/internal/runtime/supervisor"
	"punchd/internal/schedule"
	"punchd/internal/scheduler"
	"punchd/internal/storage"
	logx "punchd/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	met  metrics.Sink

	remote *remote.Client
	exec   *punch.Executor
	sched  *scheduler.Service
	notif  *notify.Service
	store  storage.Store
	rec    *storage.Recorder
	obs    *obsmetrics.Server

	// Compiled sections of the currently applied config, kept for reload
	// diffing (the manager's Get() already holds the new config by the time
	// subscribers run).
	notifCfg notify.Config
	storCfg  storage.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	// A bad config file at startup is fatal; hot reloads are validated
	// transactionally later.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig())
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()
	met := metrics.FromConfig(cfg.MetricsEnabled())

	remoteCfg, err := cfg.RemoteConfig()
	if err != nil {
		return nil, err
	}
	client := remote.New(remoteCfg, log.With(logx.String("comp", "remote")))

	execCfg, err := cfg.ExecutorConfig()
	if err != nil {
		return nil, err
	}
	exec := punch.NewExecutor(client, client, execCfg, log.With(logx.String("comp", "punch")))

	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, exec, schedule.NewPlanner(),
		log.With(logx.String("comp", "scheduler")), bus, met)

	notifCfg, err := cfg.NotifyConfig()
	if err != nil {
		return nil, err
	}
	notifLog := log.With(logx.String("comp", "notify"))
	notif := notify.New(notifCfg, notify.BuildSinks(notifCfg, notifLog), notifLog, bus, met)

	// Storage is optional; a nil store disables history.
	storCfg, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	storLog := log.With(logx.String("comp", "storage"))
	store, err := storage.Open(storCfg, storLog)
	if err != nil {
		return nil, err
	}
	var rec *storage.Recorder
	if store != nil {
		log.Info("storage enabled", logx.String("driver", storCfg.Driver))
		rec = storage.NewRecorder(store, bus, storLog)
	}

	obs := obsmetrics.New(cfg.MetricsServerConfig(), log.With(logx.String("comp", "metrics")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		met:      met,
		remote:   client,
		exec:     exec,
		sched:    sched,
		notif:    notif,
		store:    store,
		rec:      rec,
		obs:      obs,
		notifCfg: notifCfg,
		storCfg:  storCfg,
	}, nil
}

// Scheduler exposes the trigger scheduler for operational snapshots.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Done is closed when the app supervisor context is canceled (fatal error or
// Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.rec != nil {
		a.rec.Start(a.sup.Context())
	}
	a.sched.Start(a.sup.Context())
	a.obs.Start(a.sup.Context())

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, newCfg)
			}
		}
	})

	// Debug-level event trace; components subscribe themselves for real work.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.log.Info("started", logx.String("config", a.cfgPath))
	return nil
}

// applyReload pushes an already validated config into the running services.
// The config manager's validator guarantees every section compiles, so the
// per-section errors here are unreachable in practice and only logged.
func (a *App) applyReload(ctx context.Context, newCfg *config.Config) {
	a.logs.Apply(newCfg.LogConfig())

	if rc, err := newCfg.RemoteConfig(); err == nil {
		a.remote.Apply(rc)
	} else {
		a.log.Warn("invalid remote config; keeping previous", logx.Err(err))
	}
	if ec, err := newCfg.ExecutorConfig(); err == nil {
		a.exec.Apply(ec)
	} else {
		a.log.Warn("invalid retry config; keeping previous", logx.Err(err))
	}
	if sc, err := newCfg.SchedulerConfig(); err == nil {
		a.sched.Apply(sc)
	} else {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	}

	// Storage and metrics listeners are bound at startup.
	if sc, err := newCfg.StorageConfig(); err == nil && !reflect.DeepEqual(sc, a.storCfg) {
		a.storCfg = sc
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	// The notifier holds live connections (telegram, redis); a changed
	// section means stop and rebuild.
	if nc, err := newCfg.NotifyConfig(); err == nil {
		a.reconfigureNotify(ctx, nc)
	} else {
		a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
	}

	a.log.Info("config applied")
}

func (a *App) reconfigureNotify(ctx context.Context, nc notify.Config) {
	if reflect.DeepEqual(nc, a.notifCfg) {
		return
	}
	a.notifCfg = nc
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	a.notif.Stop(stopCtx)
	cancel()

	notifLog := a.log.With(logx.String("comp", "notify"))
	a.notif = notify.New(nc, notify.BuildSinks(nc, notifLog), notifLog, a.bus, a.met)
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	a.log.Info("notifier reconfigured", logx.Bool("enabled", a.notif.Enabled()))
}

func (a *App) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Stop order: no new firings first, then drain reporting, then the rest.
	a.sched.Stop(ctx)
	a.notif.Stop(ctx)
	if a.rec != nil {
		a.rec.Stop()
	}
	a.obs.Stop(ctx)

	if a.sup != nil {
		_ = a.sup.Stop(10 * time.Second)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("stopped")
	return a.logs.Close()
}
