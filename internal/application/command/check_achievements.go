package command

import (
	"context"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK ACHIEVEMENTS COMMAND
// Evaluates the registry against a snapshot and grants whatever newly
// matches. The insert is the deduplication point: a lost insert race means
// someone else already granted the achievement, and nothing is awarded twice.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementChecker grants achievements.
type AchievementChecker struct {
	registry     *achievement.Registry
	achievements achievement.Repository
	progress     progress.ProgressRepository
	updater      *StatsUpdater
	ledger       *XPLedger
	publisher    shared.EventPublisher
	log          *logger.Logger
}

// NewAchievementChecker creates a new AchievementChecker.
func NewAchievementChecker(
	registry *achievement.Registry,
	achievements achievement.Repository,
	progressRepo progress.ProgressRepository,
	updater *StatsUpdater,
	ledger *XPLedger,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *AchievementChecker {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AchievementChecker{
		registry:     registry,
		achievements: achievements,
		progress:     progressRepo,
		updater:      updater,
		ledger:       ledger,
		publisher:    publisher,
		log:          log.With(logger.Component("achievement_checker")),
	}
}

// Registry returns the registry the checker evaluates.
func (c *AchievementChecker) Registry() *achievement.Registry {
	return c.registry
}

// CheckAchievements grants every not yet earned achievement whose rule holds
// for snap. It returns only the records created by this call, in ID order.
// Rules that fail or panic are logged and skipped. A storage failure stops
// the check; records granted before it stay granted.
func (c *AchievementChecker) CheckAchievements(ctx context.Context, userID string, snap achievement.Snapshot) ([]achievement.Record, error) {
	if userID == "" {
		return nil, shared.ErrEmptyUserID
	}

	existing, err := c.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	matched, failures := c.registry.Pending(snap, achievement.EarnedSet(existing))
	for _, f := range failures {
		c.log.Warn("achievement rule failed",
			logger.UserID(userID),
			logger.AchievementID(f.AchievementID),
			logger.Err(f.Err),
		)
	}

	var granted []achievement.Record
	for _, def := range matched {
		rec := achievement.NewRecord(userID, def, c.updater.Now())
		inserted, err := c.achievements.InsertIfAbsent(ctx, rec)
		if err != nil {
			return granted, err
		}
		if !inserted {
			continue
		}

		if def.RewardXP > 0 {
			if _, err := c.ledger.AwardXP(ctx, userID, def.RewardXP, progress.AchievementReason(def.ID)); err != nil {
				c.log.Error("achievement granted but reward not applied",
					logger.UserID(userID),
					logger.AchievementID(def.ID),
					logger.XPAmount(def.RewardXP),
					logger.Err(err),
				)
				return append(granted, rec), err
			}
		}

		granted = append(granted, rec)
		c.log.Info("achievement unlocked",
			logger.UserID(userID),
			logger.AchievementID(def.ID),
		)
		publishAll(c.publisher, c.log, shared.NewAchievementUnlockedEvent(
			userID, def.ID, def.Title, def.Description, def.Icon, string(def.Rarity), def.RewardXP,
		))
	}
	return granted, nil
}

// CheckForUser loads the user's current state and checks it.
func (c *AchievementChecker) CheckForUser(ctx context.Context, userID string) ([]achievement.Record, error) {
	snap, err := c.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.CheckAchievements(ctx, userID, snap)
}

// LoadSnapshot reads the stats and lesson progress of a user.
func (c *AchievementChecker) LoadSnapshot(ctx context.Context, userID string) (achievement.Snapshot, error) {
	stats, err := c.updater.Load(ctx, userID)
	if err != nil {
		return achievement.Snapshot{}, err
	}
	lessons, err := c.progress.ListProgress(ctx, userID)
	if err != nil {
		return achievement.Snapshot{}, err
	}
	return achievement.NewSnapshot(stats, lessons), nil
}
