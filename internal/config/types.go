package config

// Config is the raw on-disk configuration (JSON or YAML). Fields are decoded
// strictly (unknown keys rejected) and validated/compiled into typed service
// configs before anything starts; services never see this struct.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Remote   RemoteConfig   `json:"remote"`

	Notify  *NotifyConfig  `json:"notify,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Metrics *MetricsConfig `json:"metrics,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScheduleConfig declares when punches happen.
//
// All durations are Go duration strings (e.g. "5s", "1m").
type ScheduleConfig struct {
	// Times are "HH:MM" entries, one per intended punch. Duplicates are
	// allowed but redundant.
	Times []string `json:"times"`

	// Weekdays is a crontab-style day-of-week pattern: "*", "1-5", "0,6",
	// "7" (alias for Sunday). Empty matches every day.
	Weekdays string `json:"weekdays,omitempty"`

	// Timezone is the IANA zone all "now" computations use.
	Timezone string `json:"timezone,omitempty"`

	// MaxJitterSeconds bounds the random offset: drawn uniformly from
	// [-max, +max). Pointer so an explicit 0 (no jitter) is distinguishable
	// from omitted (default 300).
	MaxJitterSeconds *int `json:"max_jitter_seconds,omitempty"`

	// VacationStart/VacationEnd form the inclusive blackout window,
	// "YYYY-MM-DD". The window exists only when both are set.
	VacationStart string `json:"vacation_start,omitempty"`
	VacationEnd   string `json:"vacation_end,omitempty"`

	// MaxRetries is the total attempts per punch (default 3).
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryDelay is the fixed wait between attempts (default "5s").
	RetryDelay string `json:"retry_delay,omitempty"`
}

// RemoteConfig points at the timeclock platform.
type RemoteConfig struct {
	BaseURL   string `json:"base_url"`
	LoginPath string `json:"login_path,omitempty"`
	PunchPath string `json:"punch_path,omitempty"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	// Timeout is a Go duration string bounding each remote call.
	Timeout string `json:"timeout,omitempty"`
}

// NotifyConfig controls outcome reporting. If the section is omitted the
// notifier is disabled and outcomes are only logged.
type NotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	Workers    int    `json:"workers,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Timeout    string `json:"timeout,omitempty"`

	Webhook  *WebhookTarget  `json:"webhook,omitempty"`
	Telegram *TelegramTarget `json:"telegram,omitempty"`
	Redis    *RedisTarget    `json:"redis,omitempty"`
}

type WebhookTarget struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

type TelegramTarget struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

type RedisTarget struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// StorageConfig controls the optional outcome history layer.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls the optional metrics/pprof HTTP listener.
//
// Prefer binding to localhost (e.g. "127.0.0.1:9090").
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9090"
	Pprof   bool   `json:"pprof,omitempty"`
	// AllowInsecure permits binding to a non-loopback address.
	AllowInsecure bool `json:"allow_insecure,omitempty"`
}
