// Package jobs contains implementations of scheduled jobs for the progress engine.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK AT RISK JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakAtRiskJob finds learners who were active yesterday but not yet
// today and publishes a StreakAtRisk event for each of them. The
// notification forwarder turns those events into reminders.
type StreakAtRiskJob struct {
	stats     progress.StatsRepository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	loc       *time.Location
	log       *logger.Logger
	config    StreakAtRiskConfig

	lastRun atomic.Pointer[StreakAtRiskStats]
}

// StreakAtRiskConfig contains configuration for the job.
type StreakAtRiskConfig struct {
	// Concurrency is the number of events published in parallel.
	Concurrency int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultStreakAtRiskConfig returns default configuration.
func DefaultStreakAtRiskConfig() StreakAtRiskConfig {
	return StreakAtRiskConfig{
		Concurrency: 8,
		Timeout:     5 * time.Minute,
	}
}

// StreakAtRiskStats summarizes one run.
type StreakAtRiskStats struct {
	Day       timeutil.Date `json:"day"`
	Scanned   int           `json:"scanned"`
	Published int           `json:"published"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// NewStreakAtRiskJob creates the job. Days are computed in loc.
func NewStreakAtRiskJob(
	stats progress.StatsRepository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
	config StreakAtRiskConfig,
) *StreakAtRiskJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	return &StreakAtRiskJob{
		stats:     stats,
		publisher: publisher,
		clock:     clock,
		loc:       loc,
		log:       log.With(logger.Component("streak_at_risk_job")),
		config:    config,
	}
}

// Name returns the job name.
func (j *StreakAtRiskJob) Name() string {
	return "streak_at_risk"
}

// Description returns a human-readable description.
func (j *StreakAtRiskJob) Description() string {
	return "Reminds learners whose streak ends at midnight"
}

// Run executes the scan.
func (j *StreakAtRiskJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	today := timeutil.DateOf(j.clock.Now(), j.loc)
	candidates, err := j.stats.ListActiveOn(ctx, today.AddDays(-1))
	if err != nil {
		return fmt.Errorf("list streaks at risk: %w", err)
	}

	var published, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, st := range candidates {
		if !st.StreakAtRisk(today) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := j.publisher.Publish(shared.NewStreakAtRiskEvent(st.UserID, st.CurrentStreak)); err != nil {
				failed.Add(1)
				j.log.Warn("failed to publish streak reminder", logger.UserID(st.UserID), logger.Err(err))
				return nil
			}
			published.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()

	stats := &StreakAtRiskStats{
		Day:       today,
		Scanned:   len(candidates),
		Published: int(published.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(startedAt),
	}
	j.lastRun.Store(stats)

	j.log.Info("streak_at_risk job completed",
		logger.String("day", today.String()),
		logger.Int("scanned", stats.Scanned),
		logger.Int("published", stats.Published),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
	)

	if waitErr != nil {
		return fmt.Errorf("streak_at_risk interrupted: %w", waitErr)
	}
	if stats.Failed > 0 && stats.Published == 0 {
		return fmt.Errorf("all %d streak reminders failed to publish", stats.Failed)
	}
	return nil
}

// LastRunStats returns statistics of the last run, or nil.
func (j *StreakAtRiskJob) LastRunStats() *StreakAtRiskStats {
	return j.lastRun.Load()
}
