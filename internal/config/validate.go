package config

import (
	"fmt"
	"strings"
	"time"

	"punchd/internal/notify"
	obsmetrics "punchd/internal/observability/metrics"
	"punchd/internal/policy"
	"punchd/internal/punch"
	"punchd/internal/remote"
	"punchd/internal/schedule"
	"punchd/internal/scheduler"
	"punchd/internal/storage"
	logx "punchd/pkg/logx"
)

const (
	defaultMaxJitterSeconds = 300
	defaultMaxRetries       = 3
)

// Validate compiles every section once and reports the first problem.
// A failure here is fatal at startup and rejects a hot reload.
func (c *Config) Validate() error {
	if _, err := c.SchedulerConfig(); err != nil {
		return err
	}
	if _, err := c.ExecutorConfig(); err != nil {
		return err
	}
	if _, err := c.RemoteConfig(); err != nil {
		return err
	}
	if _, err := c.NotifyConfig(); err != nil {
		return err
	}
	if _, err := c.StorageConfig(); err != nil {
		return err
	}
	return nil
}

// SchedulerConfig compiles the schedule section into the validated policy
// the trigger scheduler consumes.
func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	sc := c.Schedule

	if len(sc.Times) == 0 {
		return scheduler.Config{}, fmt.Errorf("schedule.times: at least one HH:MM entry required")
	}
	times := make([]schedule.NominalTime, 0, len(sc.Times))
	for i, raw := range sc.Times {
		nt, err := schedule.ParseNominal(raw)
		if err != nil {
			return scheduler.Config{}, fmt.Errorf("schedule.times[%d]: %w", i, err)
		}
		times = append(times, nt)
	}

	days, err := policy.ParseWeekdays(sc.Weekdays)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("schedule.weekdays: %w", err)
	}

	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("schedule.timezone: %w", err)
		}
	}

	jitterSecs := defaultMaxJitterSeconds
	if sc.MaxJitterSeconds != nil {
		jitterSecs = *sc.MaxJitterSeconds
		if jitterSecs < 0 {
			return scheduler.Config{}, fmt.Errorf("schedule.max_jitter_seconds: must be >= 0")
		}
	}

	// The window exists only when both bounds are set. Start > End is kept
	// as configured and simply never matches (vacuously empty window).
	var vacation *policy.DateRange
	if sc.VacationStart != "" && sc.VacationEnd != "" {
		start, err := policy.ParseDate(sc.VacationStart)
		if err != nil {
			return scheduler.Config{}, fmt.Errorf("schedule.vacation_start: %w", err)
		}
		end, err := policy.ParseDate(sc.VacationEnd)
		if err != nil {
			return scheduler.Config{}, fmt.Errorf("schedule.vacation_end: %w", err)
		}
		vacation = &policy.DateRange{Start: start, End: end}
	}

	return scheduler.Config{
		Times:     times,
		Weekdays:  days,
		Timezone:  sc.Timezone,
		MaxJitter: time.Duration(jitterSecs) * time.Second,
		Vacation:  vacation,
	}, nil
}

func (c *Config) ExecutorConfig() (punch.ExecutorConfig, error) {
	sc := c.Schedule

	maxRetries := sc.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	if maxRetries < 0 {
		return punch.ExecutorConfig{}, fmt.Errorf("schedule.max_retries: must be > 0")
	}

	delay, err := ParseDurationOrDefault("schedule.retry_delay", sc.RetryDelay, 5*time.Second)
	if err != nil {
		return punch.ExecutorConfig{}, err
	}

	return punch.ExecutorConfig{MaxAttempts: maxRetries, RetryDelay: delay}, nil
}

func (c *Config) RemoteConfig() (remote.Config, error) {
	rc := c.Remote
	if strings.TrimSpace(rc.BaseURL) == "" {
		return remote.Config{}, fmt.Errorf("remote.base_url required")
	}
	if strings.TrimSpace(rc.Username) == "" || rc.Password == "" {
		return remote.Config{}, fmt.Errorf("remote.username and remote.password required")
	}
	timeout, err := ParseDurationField("remote.timeout", rc.Timeout)
	if err != nil {
		return remote.Config{}, err
	}
	return remote.Config{
		BaseURL:   rc.BaseURL,
		LoginPath: rc.LoginPath,
		PunchPath: rc.PunchPath,
		Username:  rc.Username,
		Password:  rc.Password,
		Timeout:   timeout,
	}, nil
}

func (c *Config) NotifyConfig() (notify.Config, error) {
	if c.Notify == nil {
		return notify.Config{}, nil
	}
	nc := c.Notify

	timeout, err := ParseDurationField("notify.timeout", nc.Timeout)
	if err != nil {
		return notify.Config{}, err
	}

	out := notify.Config{
		Enabled:    nc.Enabled,
		Workers:    nc.Workers,
		QueueSize:  nc.QueueSize,
		RatePerSec: nc.RatePerSec,
		Timeout:    timeout,
	}
	if nc.Webhook != nil {
		if strings.TrimSpace(nc.Webhook.URL) == "" {
			return notify.Config{}, fmt.Errorf("notify.webhook.url required")
		}
		out.Webhook = &notify.WebhookConfig{URL: nc.Webhook.URL, Secret: nc.Webhook.Secret}
	}
	if nc.Telegram != nil {
		out.Telegram = &notify.TelegramConfig{Token: nc.Telegram.Token, ChatID: nc.Telegram.ChatID}
	}
	if nc.Redis != nil {
		out.Redis = &notify.RedisConfig{
			Addr:     nc.Redis.Addr,
			Password: nc.Redis.Password,
			DB:       nc.Redis.DB,
			Channel:  nc.Redis.Channel,
		}
	}
	return out, nil
}

func (c *Config) StorageConfig() (storage.Config, error) {
	if c.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

// MetricsServerConfig compiles the metrics section. A nil or disabled
// section yields a disabled server.
func (c *Config) MetricsServerConfig() obsmetrics.Config {
	if c.Metrics == nil {
		return obsmetrics.Config{}
	}
	addr := strings.TrimSpace(c.Metrics.Addr)
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	return obsmetrics.Config{
		Enabled:       c.Metrics.Enabled,
		Addr:          addr,
		Pprof:         c.Metrics.Pprof,
		AllowInsecure: c.Metrics.AllowInsecure,
	}
}

// MetricsEnabled reports whether the Prometheus sink should be active.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics != nil && c.Metrics.Enabled
}
