package command

import (
	"context"
	"fmt"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/retry"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS UPDATER
// Read-modify-write cycles on UserStats guarded by compare-and-swap on Version.
// A lost race reloads fresh state and reapplies the mutation.
// ══════════════════════════════════════════════════════════════════════════════

// Mutation changes a working copy of the stats and returns the ledger
// entries to persist with it. It may run more than once and must not have
// side effects outside the stats value.
type Mutation func(stats *progress.UserStats, now time.Time) ([]progress.LedgerEntry, error)

// StatsUpdaterConfig contains configuration for the updater.
type StatsUpdaterConfig struct {
	// MaxAttempts bounds compare-and-swap retries.
	MaxAttempts int

	// Clock supplies timestamps. Defaults to the system clock.
	Clock timeutil.Clock
}

// DefaultStatsUpdaterConfig returns default configuration.
func DefaultStatsUpdaterConfig() StatsUpdaterConfig {
	return StatsUpdaterConfig{
		MaxAttempts: 5,
		Clock:       timeutil.SystemClock{},
	}
}

// StatsUpdater applies mutations to a user's stats without lost updates.
type StatsUpdater struct {
	repo    progress.StatsRepository
	retrier *retry.Retrier
	clock   timeutil.Clock
}

// NewStatsUpdater creates a new StatsUpdater.
func NewStatsUpdater(repo progress.StatsRepository, config StatsUpdaterConfig) *StatsUpdater {
	defaults := DefaultStatsUpdaterConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	return &StatsUpdater{
		repo:    repo,
		retrier: retry.OptimisticRetrier(config.MaxAttempts),
		clock:   config.Clock,
	}
}

// Now returns the updater's current time in UTC.
func (u *StatsUpdater) Now() time.Time {
	return u.clock.Now().UTC()
}

// Load returns the stored stats or fresh zero-value stats (Version 0)
// for a user who has no activity yet.
func (u *StatsUpdater) Load(ctx context.Context, userID string) (*progress.UserStats, error) {
	stats, err := u.repo.GetStats(ctx, userID)
	if err == nil {
		return stats, nil
	}
	if shared.IsNotFound(err) {
		return progress.NewUserStats(userID, u.Now()), nil
	}
	return nil, err
}

// Update runs m against the latest stats and saves the result atomically
// with the returned ledger entries. Conflicts are retried; mutation errors
// and storage failures are returned as is.
func (u *StatsUpdater) Update(ctx context.Context, userID string, m Mutation) (*progress.UserStats, error) {
	var saved *progress.UserStats

	err := u.retrier.Do(ctx, func(ctx context.Context) error {
		current, err := u.Load(ctx, userID)
		if err != nil {
			return err
		}

		working := current.Clone()
		now := u.Now()
		entries, err := m(working, now)
		if err != nil {
			return err
		}
		working.UpdatedAt = now

		if err := u.repo.SaveStats(ctx, working, current.Version, entries...); err != nil {
			if shared.IsConflict(err) {
				return retry.Retryable(err)
			}
			return err
		}
		saved = working
		return nil
	})
	if err != nil {
		if shared.IsConflict(err) {
			return nil, shared.WrapError("progress", "UpdateStats", shared.ErrConflict,
				fmt.Sprintf("gave up after %d attempts", u.retrier.MaxAttempts()), err)
		}
		return nil, err
	}
	return saved, nil
}
