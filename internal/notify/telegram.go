package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"punchd/internal/punch"
)

// TelegramSink sends a short human-readable summary of each outcome to a chat.
type TelegramSink struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat_id required")
	}
	// Offline: no getMe roundtrip at startup; the sink only sends.
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true, Synchronous: true})
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: cfg.ChatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, o punch.Outcome) error {
	_ = ctx // telebot bounds the call with its own HTTP client timeout
	_, err := s.bot.Send(tele.ChatID(s.chatID), formatOutcome(o))
	return err
}

func formatOutcome(o punch.Outcome) string {
	var b strings.Builder
	switch o.Status {
	case punch.StatusSuccess:
		b.WriteString("✅ punch ok")
	case punch.StatusSkipped:
		b.WriteString("🏖 punch skipped")
	default:
		b.WriteString("❌ punch failed")
	}
	fmt.Fprintf(&b, "\nscheduled: %s", o.ScheduledTime.Format(time.RFC3339))
	if o.ExecutedTime != nil {
		fmt.Fprintf(&b, "\nexecuted: %s (offset %+ds)", o.ExecutedTime.Format(time.RFC3339), o.OffsetSeconds)
	}
	if o.Attempts > 0 {
		fmt.Fprintf(&b, "\nattempts: %d", o.Attempts)
	}
	if o.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", o.Error)
	}
	if o.Reason != "" {
		fmt.Fprintf(&b, "\nreason: %s", o.Reason)
	}
	return b.String()
}
