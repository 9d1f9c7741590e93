package command

import (
	"context"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK COMMAND
// Applies a day of activity to the user's streak. Days are civil dates in
// the tracker's location, so "consecutive" means consecutive calendar days
// there, not 24-hour windows.
// ══════════════════════════════════════════════════════════════════════════════

// StreakTracker updates daily streaks.
type StreakTracker struct {
	updater   *StatsUpdater
	loc       *time.Location
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewStreakTracker creates a new StreakTracker. A nil loc means UTC.
func NewStreakTracker(
	updater *StatsUpdater,
	loc *time.Location,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *StreakTracker {
	if loc == nil {
		loc = time.UTC
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StreakTracker{
		updater:   updater,
		loc:       loc,
		publisher: publisher,
		log:       log.With(logger.Component("streak_tracker")),
	}
}

// Location returns the location used to bucket activity into days.
func (t *StreakTracker) Location() *time.Location {
	return t.loc
}

// Day returns the civil date of at in the tracker's location.
func (t *StreakTracker) Day(at time.Time) timeutil.Date {
	return timeutil.DateOf(at, t.loc)
}

// UpdateStreak records activity at the given instant. Activity dated
// before the last recorded day is rejected without changing anything.
func (t *StreakTracker) UpdateStreak(ctx context.Context, userID string, at time.Time) (progress.StreakResult, error) {
	if userID == "" {
		return progress.StreakResult{}, shared.ErrEmptyUserID
	}
	if at.IsZero() {
		return progress.StreakResult{}, shared.Invalid("progress", "UpdateStreak", "activity time is required")
	}

	day := t.Day(at)
	var result progress.StreakResult

	_, err := t.updater.Update(ctx, userID, func(s *progress.UserStats, _ time.Time) ([]progress.LedgerEntry, error) {
		res, err := s.RecordActivity(day)
		if err != nil {
			return nil, err
		}
		result = res
		return nil, nil
	})
	if err != nil {
		return progress.StreakResult{}, err
	}

	publishAll(t.publisher, t.log, StreakEvents(userID, result)...)
	return result, nil
}

// StreakEvents returns the events describing a streak change.
func StreakEvents(userID string, res progress.StreakResult) []shared.Event {
	if !res.StreakChanged {
		return nil
	}
	events := []shared.Event{
		shared.NewStreakUpdatedEvent(userID, res.CurrentStreak, res.LongestStreak),
	}
	if res.StreakBroken {
		events = append(events, shared.NewStreakBrokenEvent(userID, res.PreviousStreak, res.DaysMissed))
	}
	return events
}
