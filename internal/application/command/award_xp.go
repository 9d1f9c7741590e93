package command

import (
	"context"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// Every XP movement goes through here: the stats update and its ledger
// entries are written in one compare-and-swap, then events are published.
// ══════════════════════════════════════════════════════════════════════════════

// Award is a single XP movement. Penalty marks a deduction.
type Award struct {
	Amount  int64           `json:"amount"`
	Reason  progress.Reason `json:"reason"`
	Penalty bool            `json:"penalty,omitempty"`
}

// LedgerUpdate describes one atomic write to a user's stats.
type LedgerUpdate struct {
	// UserID is the learner whose stats change.
	UserID string

	// Awards are applied in order.
	Awards []Award

	// Mutate applies non-XP changes (counters, streak) in the same write
	// and may return further awards that depend on them. It runs before
	// the fixed awards and may run more than once on conflicts.
	Mutate func(stats *progress.UserStats, now time.Time) ([]Award, error)
}

// LedgerOutcome contains the result of a LedgerUpdate.
type LedgerOutcome struct {
	// Awards lists what was applied: the awards returned by Mutate
	// followed by the fixed ones.
	Awards []Award

	// Results holds one XPResult per applied award, in order.
	Results []progress.XPResult

	// Combined sums the awards. OldLevel is the level before the first
	// award and NewLevel the level after the last.
	Combined progress.XPResult

	// Stats is the saved state.
	Stats *progress.UserStats
}

// XPLedgerConfig contains configuration for the ledger.
type XPLedgerConfig struct {
	IDGenerator IDGenerator
}

// XPLedger awards and deducts XP.
type XPLedger struct {
	updater   *StatsUpdater
	ids       IDGenerator
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewXPLedger creates a new XPLedger.
func NewXPLedger(
	updater *StatsUpdater,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config XPLedgerConfig,
) *XPLedger {
	if config.IDGenerator == nil {
		config.IDGenerator = UUIDGenerator{}
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &XPLedger{
		updater:   updater,
		ids:       config.IDGenerator,
		publisher: publisher,
		log:       log.With(logger.Component("xp_ledger")),
	}
}

// AwardXP adds a non-negative amount of XP to the user's total and
// recomputes the level.
func (l *XPLedger) AwardXP(ctx context.Context, userID string, amount int64, reason progress.Reason) (progress.XPResult, error) {
	if amount < 0 {
		return progress.XPResult{}, shared.Invalid("progress", "AwardXP", "amount must be >= 0, got %d", amount)
	}
	out, err := l.Apply(ctx, LedgerUpdate{
		UserID: userID,
		Awards: []Award{{Amount: amount, Reason: reason}},
	})
	if err != nil {
		return progress.XPResult{}, err
	}
	return out.Results[0], nil
}

// PenalizeXP deducts XP. A penalty larger than the current total is
// rejected; the level may go down.
func (l *XPLedger) PenalizeXP(ctx context.Context, userID string, amount int64, reason progress.Reason) (progress.XPResult, error) {
	if amount < 0 {
		return progress.XPResult{}, shared.Invalid("progress", "PenalizeXP", "amount must be >= 0, got %d", amount)
	}
	out, err := l.Apply(ctx, LedgerUpdate{
		UserID: userID,
		Awards: []Award{{Amount: amount, Reason: reason, Penalty: true}},
	})
	if err != nil {
		return progress.XPResult{}, err
	}
	return out.Results[0], nil
}

// Apply performs the update as one write and publishes the resulting events.
func (l *XPLedger) Apply(ctx context.Context, upd LedgerUpdate) (*LedgerOutcome, error) {
	userID, err := shared.NormalizeID("progress", "Apply", "user_id", upd.UserID)
	if err != nil {
		return nil, err
	}
	upd.UserID = userID
	for _, a := range upd.Awards {
		if a.Amount < 0 {
			return nil, shared.Invalid("progress", "Apply", "award amount must be >= 0, got %d", a.Amount)
		}
		if a.Reason == "" {
			return nil, shared.Invalid("progress", "Apply", "award reason is required")
		}
	}

	var (
		applied  []Award
		results  []progress.XPResult
		oldLevel int
	)

	stats, err := l.updater.Update(ctx, upd.UserID, func(s *progress.UserStats, now time.Time) ([]progress.LedgerEntry, error) {
		applied = applied[:0]
		results = results[:0]
		oldLevel = s.Level

		if upd.Mutate != nil {
			extra, err := upd.Mutate(s, now)
			if err != nil {
				return nil, err
			}
			applied = append(applied, extra...)
		}
		applied = append(applied, upd.Awards...)

		entries := make([]progress.LedgerEntry, 0, len(applied))
		for _, a := range applied {
			var (
				res progress.XPResult
				err error
			)
			if a.Penalty {
				res, err = s.DeductXP(a.Amount)
			} else {
				res, err = s.AddXP(a.Amount)
			}
			if err != nil {
				return nil, err
			}
			results = append(results, res)
			if res.XPAwarded != 0 {
				entries = append(entries, progress.NewLedgerEntry(l.ids.GenerateID(), s.UserID, a.Reason, res, now))
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	out := &LedgerOutcome{
		Awards:   append([]Award(nil), applied...),
		Results:  append([]progress.XPResult(nil), results...),
		Combined: combine(oldLevel, stats, results),
		Stats:    stats,
	}
	l.publish(upd.UserID, out)
	return out, nil
}

func (l *XPLedger) publish(userID string, out *LedgerOutcome) {
	events := make([]shared.Event, 0, len(out.Results)+1)
	for i, res := range out.Results {
		if res.XPAwarded == 0 {
			continue
		}
		events = append(events, shared.NewXPAwardedEvent(
			userID, res.XPAwarded, string(out.Awards[i].Reason), res.TotalXP, res.NewLevel,
		))
		l.log.Debug("xp movement",
			logger.UserID(userID),
			logger.XPAmount(res.XPAwarded),
			logger.String("reason", string(out.Awards[i].Reason)),
		)
	}
	if out.Combined.LeveledUp {
		events = append(events, shared.NewLevelUpEvent(
			userID, out.Combined.OldLevel, out.Combined.NewLevel, out.Combined.TotalXP,
		))
		l.log.Info("level up",
			logger.UserID(userID),
			logger.Int("old_level", out.Combined.OldLevel),
			logger.Int("new_level", out.Combined.NewLevel),
		)
	}
	publishAll(l.publisher, l.log, events...)
}

// combine folds per-award results into one XPResult.
func combine(oldLevel int, stats *progress.UserStats, results []progress.XPResult) progress.XPResult {
	var sum int64
	for _, r := range results {
		sum += r.XPAwarded
	}
	return progress.XPResult{
		XPAwarded:   sum,
		TotalXP:     stats.TotalXP,
		OldLevel:    oldLevel,
		NewLevel:    stats.Level,
		LeveledUp:   stats.Level > oldLevel,
		LeveledDown: stats.Level < oldLevel,
	}
}
