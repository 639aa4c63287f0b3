// Package housekeeping runs periodic maintenance of the conversation and
// invitation tables.
package housekeeping

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of periodic maintenance
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs its tasks on a fixed interval
type Scheduler struct {
	tasks        []Task
	interval     time.Duration
	initialDelay time.Duration
	logger       *slog.Logger
	stopCh       chan struct{}
	cancel       context.CancelFunc // Cancel function to stop in-flight operations
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

// Config holds configuration for the housekeeping scheduler
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// New creates a new housekeeping scheduler
func New(cfg Config, logger *slog.Logger, tasks ...Task) *Scheduler {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 15 * time.Second
	}

	return &Scheduler{
		tasks:        tasks,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	s.logger.Info("housekeeping scheduler started", "interval", s.interval, "tasks", names)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the scheduler and waits for the running pass to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("housekeeping scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run after a short delay on start (to let the app initialize)
	select {
	case <-time.After(s.initialDelay):
		s.process(ctx)
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-ticker.C:
			s.process(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// process runs every task once. A failing task does not stop the others.
func (s *Scheduler) process(ctx context.Context) {
	for _, t := range s.tasks {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		if err := t.Run(ctx); err != nil {
			s.logger.Error("housekeeping task failed", "task", t.Name, "error", err)
			continue
		}
		s.logger.Debug("housekeeping task done", "task", t.Name, "took", time.Since(start))
	}
}
