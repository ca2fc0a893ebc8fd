// Package supervisor manages named goroutines tied to a shared context:
// panic recovery, first-error capture, and timeout-aware graceful stop.
// One panicking firing must never take the scheduler loop down with it.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "punchd/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	// Best-effort operational counters.
	started uint64
	active  int64

	log         logx.Logger
	cancelOnErr bool
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the supervisor context on the first non-nil error
// from any goroutine.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	err, _ := v.(error)
	return err
}

// Active returns the number of goroutines currently running.
func (s *Supervisor) Active() int64 {
	if s == nil {
		return 0
	}
	return atomic.LoadInt64(&s.active)
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.firstErr.CompareAndSwap(nil, err)
}

// Go runs fn in a supervised goroutine. Panics are converted to errors and
// logged with a stack; they never propagate.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				if !s.log.IsZero() {
					s.log.Error("goroutine panicked",
						logx.String("name", name),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
				}
				s.setErr(err)
				if s.cancelOnErr {
					s.cancel()
				}
			}
		}()

		err := fn(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(fmt.Errorf("%s: %w", name, err))
			if s.cancelOnErr {
				s.cancel()
			}
		}
	}()
}

// Go0 is Go for functions without an error return.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Stop cancels the context and waits for goroutines to exit, up to the
// given timeout (wait forever when timeout <= 0).
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.cancel()
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	if timeout <= 0 {
		<-s.doneCh
		return s.Err()
	}

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()
	select {
	case <-s.doneCh:
		return s.Err()
	case <-tmr.C:
		return fmt.Errorf("supervisor stop timed out after %s (active=%d)", timeout, s.Active())
	}
}

// Wait blocks until all goroutines have exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
