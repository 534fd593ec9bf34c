package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Observer is told about every finished iteration. Optional.
type Observer func(iteration uint64, started time.Time, err error)

// Scheduler runs a task immediately and then once per interval until stopped.
// An iteration that returns an error or panics is logged and counted; the next
// iteration runs regardless.
type Scheduler struct {
	logger   *zap.Logger
	name     string
	task     Task
	interval time.Duration
	observe  Observer

	stopCh   chan struct{}
	stopOnce sync.Once

	iterations atomic.Uint64
	failures   atomic.Uint64
}

// NewScheduler constructs a scheduler named for logging.
func NewScheduler(logger *zap.Logger, name string, interval time.Duration, task Task) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		logger:   logger,
		name:     name,
		task:     task,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// OnIteration registers an observer.
func (s *Scheduler) OnIteration(o Observer) *Scheduler {
	s.observe = o
	return s
}

// Start blocks running iterations until Stop or ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler.started", zap.String("job", s.name), zap.Duration("interval", s.interval))

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			s.logger.Info("scheduler.stopped (manual stop)", zap.String("job", s.name))
			return
		case <-ctx.Done():
			s.logger.Info("scheduler.stopped (context canceled)", zap.String("job", s.name))
			return
		}
	}
}

// RunN runs exactly n iterations back to back, without waiting for the interval.
// It returns early only if ctx is canceled.
func (s *Scheduler) RunN(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runOnce(ctx)
	}
	return nil
}

// Stop halts Start. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Iterations returns the number of finished iterations.
func (s *Scheduler) Iterations() uint64 { return s.iterations.Load() }

// Failures returns the number of iterations that errored or panicked.
func (s *Scheduler) Failures() uint64 { return s.failures.Load() }

func (s *Scheduler) runOnce(ctx context.Context) {
	started := time.Now()
	n := s.iterations.Add(1)

	err := s.call(ctx)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("scheduler.iteration_failed",
			zap.String("job", s.name),
			zap.Uint64("iteration", n),
			zap.Time("attempted_at", started),
			zap.Error(err))
	} else {
		s.logger.Debug("scheduler.iteration_done",
			zap.String("job", s.name),
			zap.Uint64("iteration", n),
			zap.Duration("duration", time.Since(started)))
	}

	if s.observe != nil {
		s.observe(n, started, err)
	}
}

func (s *Scheduler) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("scheduler.panic_stack", zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.task(ctx)
}
