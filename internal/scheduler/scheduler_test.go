package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startAsync(t *testing.T, s *Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ctx != nil
	}, time.Second, time.Millisecond)
	return cancel, done
}

func TestScheduler_RunOnStartAndInterval(t *testing.T) {
	var runs atomic.Int32
	s := New(20*time.Millisecond, true, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, quiet())

	cancel, done := startAsync(t, s)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_NoRunOnStart(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, false, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, quiet())

	cancel, done := startAsync(t, s)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	var states []bool
	s := New(time.Hour, false, func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return errors.New("pass failed")
	}, quiet())
	s.OnStateChange = func(running bool) { states = append(states, running) }

	cancel, done := startAsync(t, s)

	require.NoError(t, s.Trigger())
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Trigger(), ErrBusy)

	close(release)
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, []bool{true, false}, states)

	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_StopWaitsForPass(t *testing.T) {
	var finished atomic.Bool
	s := New(time.Hour, true, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}, quiet())

	cancel, done := startAsync(t, s)
	require.Eventually(t, s.Running, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, finished.Load(), "Start returns only after the pass returned")
}

func TestScheduler_TriggerNotStarted(t *testing.T) {
	s := New(time.Minute, false, func(ctx context.Context) error { return nil }, quiet())
	assert.ErrorIs(t, s.Trigger(), ErrNotStarted)
}

func TestScheduler_InvalidInterval(t *testing.T) {
	s := New(0, false, func(ctx context.Context) error { return nil }, quiet())
	assert.Error(t, s.Start(context.Background()))
}
