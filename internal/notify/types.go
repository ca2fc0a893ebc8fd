package notify

import (
	"context"
	"errors"
	"time"

	"punchd/internal/punch"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
)

// Config controls the async outcome delivery pipeline.
type Config struct {
	Enabled    bool
	Workers    int
	QueueSize  int
	RatePerSec int
	// Timeout bounds a single sink delivery. A hung delivery must not starve
	// later firings.
	Timeout time.Duration

	Webhook  *WebhookConfig
	Telegram *TelegramConfig
	Redis    *RedisConfig
}

// Sink delivers one outcome event to one destination. Delivery is
// best-effort: an error is logged and counted, never retried, and never
// reaches the scheduler.
type Sink interface {
	Name() string
	Send(ctx context.Context, o punch.Outcome) error
}

// WebhookConfig targets a JSON webhook endpoint.
type WebhookConfig struct {
	URL    string
	Secret string // optional; enables the HMAC signature header
}

// TelegramConfig targets a Telegram chat.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// RedisConfig publishes outcomes on a redis channel.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}
