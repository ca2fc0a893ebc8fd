package storage

import (
	"context"
	"errors"
	"strings"

	"punchd/internal/punch"
	logx "punchd/pkg/logx"
)

// Store is the minimal persistence API for punch outcome history.
//
// Outcomes are written once and only read back for operator inspection; the
// scheduler never consults the store (no cross-restart dedup by design).
type Store interface {
	AppendOutcome(ctx context.Context, o punch.Outcome) error
	Recent(ctx context.Context, n int) ([]punch.Outcome, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
