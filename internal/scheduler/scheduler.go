// Package scheduler triggers reconciliation passes on a fixed interval and
// on demand. At most one pass runs at a time; triggers that arrive while a
// pass is running are dropped, not queued.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrBusy is returned by Trigger when a pass is already running.
	ErrBusy = errors.New("a pass is already running")
	// ErrNotStarted is returned by Trigger before Start or after it returned.
	ErrNotStarted = errors.New("scheduler is not running")
)

// RunFunc runs one pass. Its error is logged; the schedule continues.
type RunFunc func(ctx context.Context) error

// Scheduler drives RunFunc.
type Scheduler struct {
	interval   time.Duration
	runOnStart bool
	run        RunFunc
	logger     *slog.Logger

	// OnStateChange, when set, is called with true before and false after
	// every pass.
	OnStateChange func(running bool)

	running atomic.Bool
	wg      sync.WaitGroup

	mu  sync.Mutex
	ctx context.Context
}

// New creates a scheduler. A nil logger means slog.Default().
func New(interval time.Duration, runOnStart bool, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval:   interval,
		runOnStart: runOnStart,
		run:        run,
		logger:     logger,
	}
}

// Start blocks until ctx is cancelled, then waits for the in-flight pass
// (which sees the same cancellation) to return.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ctx = nil
		s.mu.Unlock()
		s.wg.Wait()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval, "run_on_start", s.runOnStart)
	if s.runOnStart {
		s.tryRun(ctx, "start")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return nil
		case <-ticker.C:
			s.tryRun(ctx, "interval")
		}
	}
}

// Trigger starts a pass now unless one is running.
func (s *Scheduler) Trigger() error {
	// Held across tryRun so wg.Add never races the final wg.Wait in Start.
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		return ErrNotStarted
	}
	if !s.tryRun(ctx, "manual") {
		return ErrBusy
	}
	return nil
}

// Running reports whether a pass is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) tryRun(ctx context.Context, reason string) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("pass still running, trigger skipped", "trigger", reason)
		return false
	}
	if s.OnStateChange != nil {
		s.OnStateChange(true)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if s.OnStateChange != nil {
				s.OnStateChange(false)
			}
			s.running.Store(false)
		}()

		start := time.Now()
		s.logger.Info("pass triggered", "trigger", reason)
		if err := s.run(ctx); err != nil {
			s.logger.Error("pass failed", "trigger", reason, "error", err, "elapsed", time.Since(start))
			return
		}
		s.logger.Info("pass done", "trigger", reason, "elapsed", time.Since(start))
	}()
	return true
}
