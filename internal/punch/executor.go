package punch

import (
	"context"
	"sync"
	"time"

	logx "punchd/pkg/logx"
)

const defaultRetryDelay = 5 * time.Second

// ExecutorConfig controls retry behavior for one firing.
type ExecutorConfig struct {
	// MaxAttempts is the total attempts per punch (not retries beyond the
	// first). Defaults to 3.
	MaxAttempts int
	// RetryDelay is the fixed wait between attempts. No backoff growth: the
	// punch is a low-frequency periodic job, not a hot path. Defaults to 5s.
	RetryDelay time.Duration
}

// Result is the terminal outcome of one Execute call.
type Result struct {
	OK       bool
	Payload  string
	Err      error
	Attempts int
}

// Executor runs the two-step remote action (authenticate, then submit) with a
// bounded retry loop. A failure in either step consumes one attempt; the next
// attempt restarts from authentication so a stale session can't fail
// MaxAttempts times in a row.
type Executor struct {
	auth   Authenticator
	submit Submitter
	log    logx.Logger

	mu  sync.Mutex
	cfg ExecutorConfig
}

func NewExecutor(auth Authenticator, submit Submitter, cfg ExecutorConfig, log logx.Logger) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Executor{auth: auth, submit: submit, cfg: normalize(cfg), log: log}
}

func normalize(cfg ExecutorConfig) ExecutorConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return cfg
}

// Apply swaps the retry settings. In-flight executions keep the config they
// started with.
func (e *Executor) Apply(cfg ExecutorConfig) {
	e.mu.Lock()
	e.cfg = normalize(cfg)
	e.mu.Unlock()
}

// Execute performs up to MaxAttempts full authenticate+submit sequences,
// returning on the first success. The retry loop is an explicit counter, so
// the failure path is bounded by construction.
func (e *Executor) Execute(ctx context.Context) Result {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		tok, err := e.auth.Authenticate(ctx)
		if err == nil {
			var payload string
			payload, err = e.submit.SubmitPunch(ctx, tok)
			if err == nil {
				if attempt > 1 {
					e.log.Info("punch succeeded after retry", logx.Int("attempt", attempt))
				}
				return Result{OK: true, Payload: payload, Attempts: attempt}
			}
		}
		lastErr = err
		e.log.Warn("punch attempt failed",
			logx.Int("attempt", attempt),
			logx.Int("max_attempts", cfg.MaxAttempts),
			logx.Err(err),
		)

		if attempt == cfg.MaxAttempts {
			break
		}

		tmr := time.NewTimer(cfg.RetryDelay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return Result{Err: ctx.Err(), Attempts: attempt}
		case <-tmr.C:
		}
	}

	return Result{Err: lastErr, Attempts: cfg.MaxAttempts}
}
