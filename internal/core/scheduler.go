package core

// scheduler.go provides background job scheduling for maintenance tasks.
//
// Currently implements expired token purging. The job runs once on start and
// then on a standard five-field cron schedule ("@hourly" style descriptors
// are accepted too). A failed run is logged and does not stop the scheduler.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule runs the token purge at minute 0 of every hour.
const DefaultPurgeSchedule = "0 * * * *"

// StartTokenPurgeScheduler runs the token purge job until ctx is cancelled.
// It returns an error only when schedule cannot be parsed; otherwise it
// blocks until shutdown.
func (s *Service) StartTokenPurgeScheduler(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.runTokenPurge(ctx) }); err != nil {
		return fmt.Errorf("token purge schedule %q: %w", schedule, err)
	}

	slog.Info("token purge scheduler started", "schedule", schedule)

	// Run immediately on startup
	s.runTokenPurge(ctx)

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		slog.Warn("token purge scheduler stop timed out")
	}
	slog.Info("token purge scheduler stopped")
	return nil
}

// runTokenPurge performs one purge cycle.
func (s *Service) runTokenPurge(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	purged, err := s.PurgeExpiredTokens(ctx)
	if err != nil {
		slog.Error("token purge failed", "error", err)
		return
	}

	s.metrics.TokensPurged(purged)
	slog.Info("purged expired tokens",
		"tokens_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
