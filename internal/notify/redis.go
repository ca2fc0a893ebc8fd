package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"punchd/internal/punch"
)

const defaultRedisChannel = "punchd:outcomes"

// RedisSink publishes outcome events on a redis pub/sub channel for
// downstream consumers (dashboards, further fan-out).
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis addr required")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = defaultRedisChannel
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisSink{rdb: rdb, channel: ch}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, o punch.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return s.rdb.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisSink) Close() error { return s.rdb.Close() }
