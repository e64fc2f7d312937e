package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler creates a backup every interval and prunes old ones.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	keep     int
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewScheduler creates a Scheduler. It does nothing until Start.
func NewScheduler(svc *Service, interval time.Duration, keep int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{svc: svc, interval: interval, keep: keep, logger: logger, done: make(chan struct{})}
}

// Start runs the schedule in the background until Stop or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop ends the schedule and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("backup schedule started", "interval", s.interval, "keep", s.keep)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce creates one backup and prunes down to the retention count.
// Failures are logged; the next tick tries again.
func (s *Scheduler) RunOnce(ctx context.Context) {
	res, err := s.svc.Create(ctx, BackupOptions{})
	if err != nil {
		s.logger.Error("scheduled backup failed", "error", err)
		return
	}
	s.logger.Info("scheduled backup written",
		"path", res.Path,
		"wines", res.Counts.Wines,
		"experienced", res.Counts.Experienced,
		"duration", res.Duration,
	)

	if _, err := s.svc.Prune(ctx, s.keep); err != nil {
		s.logger.Warn("failed to prune backups", "error", err)
	}
}
