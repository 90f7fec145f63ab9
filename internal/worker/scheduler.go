package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/service"
)

// Job is a periodic task. Run is invoked once at start and then every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on their own tickers until the context is cancelled.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler. Jobs with a non-positive interval are skipped.
func NewScheduler(logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Start launches one goroutine per job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.logger.Warn("periodic job disabled", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, job)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, job)
		case <-ctx.Done():
			s.logger.Info("stopping periodic job", zap.String("job", job.Name))
			return
		}
	}
}

// runOnce keeps a failing or panicking run from stopping later runs.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("periodic job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		s.logger.Warn("periodic job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	s.logger.Debug("periodic job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
}

// InactivitySweepJob closes stale tickets.
func InactivitySweepJob(tickets *service.TicketService, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "inactivity_sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			closed, err := tickets.SweepInactive(ctx)
			if err != nil {
				return fmt.Errorf("sweep inactive tickets: %w", err)
			}
			if closed > 0 && logger != nil {
				logger.Info("inactive tickets closed", zap.Int("count", closed))
			}
			return nil
		},
	}
}

// MemoryPruneJob applies the memory log retention window.
func MemoryPruneJob(memory *service.MemoryService, interval time.Duration) Job {
	return Job{
		Name:     "memory_prune",
		Interval: interval,
		Run: func(ctx context.Context) error {
			if _, err := memory.Prune(ctx); err != nil {
				return fmt.Errorf("prune memory log: %w", err)
			}
			return nil
		},
	}
}
