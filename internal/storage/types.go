package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the optional outcome history store.
//
// Driver values:
//   - "file": dependency-free append-only JSON Lines
//   - "sqlite": SQLite database file (build tag `sqlite`)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Keep        int           // max records retained by Recent-style queries; 0 = default
}
