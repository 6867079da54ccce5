package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes verification results recorded before a cutoff.
type Pruner interface {
	PruneVerifications(ctx context.Context, before time.Time) (int64, error)
}

// PruneScheduler removes verification results older than the retention
// period on a cron schedule.
type PruneScheduler struct {
	pruner    Pruner
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// NewPruneScheduler returns a scheduler for a standard cron expression or
// descriptor such as "@hourly".
func NewPruneScheduler(pruner Pruner, schedule string, retention time.Duration, logger *slog.Logger) *PruneScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneScheduler{
		pruner:    pruner,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.With("component", "prune.scheduler"),
		now:       time.Now,
	}
}

// Start schedules pruning and stops it when ctx is cancelled. An empty
// schedule disables pruning.
func (s *PruneScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("prune scheduler started", "schedule", s.schedule, "retention", s.retention.String())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce prunes everything older than the retention period.
func (s *PruneScheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.pruner.PruneVerifications(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return 0, err
	}
	s.logger.Debug("scheduled pruning completed", "deleted_count", deleted)
	return deleted, nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *PruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("prune scheduler stopped")
	}
}

// NextRun returns the next scheduled prune, or nil when not running.
func (s *PruneScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
