package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DueProcessor is the work a Scheduler runs on every tick.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// Interval is how often to run the catch-up (default: 1h)
	Interval time.Duration

	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: time.Hour,
		Clock:    time.Now,
	}
}

// Scheduler runs recurring catch-up on a ticker, once immediately on start.
type Scheduler struct {
	processor DueProcessor
	config    SchedulerConfig
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(processor DueProcessor, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{processor: processor, config: config, logger: logger}
}

// Start begins the processing loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	s.logger.InfoContext(ctx, "Recurring scheduler started", "interval", s.config.Interval)
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// Stop signals the loop and waits for the current run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Recurring scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Recurring scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.config.Clock()
	n, err := s.processor.ProcessDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Recurring catch-up failed", "generated", n, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "Recurring catch-up complete",
		"generated", n,
		"next_check", now.Add(s.config.Interval).Format(time.TimeOnly))
}
