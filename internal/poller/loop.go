// Package poller runs a task on a fixed interval with start/stop semantics
// and at most one outstanding run.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one unit of periodic work. ctx is cancelled when the loop stops.
type Task func(ctx context.Context) error

// Loop is a cancellable periodic task. Start and Stop are idempotent. A tick
// that fires while the previous run is still outstanding is skipped.
type Loop struct {
	interval time.Duration
	task     Task
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	busy     atomic.Bool
	inflight sync.WaitGroup
	runs     atomic.Int64
	skipped  atomic.Int64
}

func New(interval time.Duration, task Task, logger *slog.Logger) *Loop {
	return &Loop{
		interval: interval,
		task:     task,
		logger:   logger.With(slog.String("component", "poller")),
	}
}

// Start begins ticking every interval. It returns false when the loop is
// already running.
func (l *Loop) Start(parent context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	l.logger.Info("polling started", slog.Duration("interval", l.interval))
	return true
}

// Stop prevents further ticks. A run already in flight is not waited for;
// its context is cancelled. It returns false when the loop was not running.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	l.logger.Info("polling stopped")
	return true
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Busy reports whether a run is outstanding.
func (l *Loop) Busy() bool { return l.busy.Load() }

// Runs returns the number of runs started so far.
func (l *Loop) Runs() int64 { return l.runs.Load() }

// Skipped returns the number of ticks dropped because a run was outstanding.
func (l *Loop) Skipped() int64 { return l.skipped.Load() }

// Wait blocks until any outstanding run has finished.
func (l *Loop) Wait() {
	l.inflight.Wait()
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.fire(ctx)
		}
	}
}

func (l *Loop) fire(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		l.skipped.Add(1)
		l.logger.Debug("tick skipped, previous run still outstanding")
		return
	}
	l.runs.Add(1)
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		defer l.busy.Store(false)
		if err := l.task(ctx); err != nil {
			l.logger.Warn("tick failed", slogError(err))
		}
	}()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
