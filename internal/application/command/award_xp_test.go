package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

func TestAwardXP_LevelsUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.AwardXP(ctx, "u1", 175, progress.ReasonManual)
	require.NoError(t, err)

	assert.Equal(t, int64(175), res.XPAwarded)
	assert.Equal(t, int64(175), res.TotalXP)
	assert.Equal(t, 1, res.OldLevel)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LeveledUp)

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(175), stats.TotalXP)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, int64(1), stats.Version)

	assert.Len(t, f.events.ofType(shared.EventXPAwarded), 1)
	assert.Len(t, f.events.ofType(shared.EventLevelUp), 1)
}

func TestAwardXP_RejectsNegative(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AwardXP(context.Background(), "u1", -5, progress.ReasonManual)
	assert.True(t, shared.IsInvalidInput(err))

	_, err = f.store.GetStats(context.Background(), "u1")
	assert.True(t, shared.IsNotFound(err), "nothing should be written")
}

func TestAwardXP_RejectsEmptyUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AwardXP(context.Background(), "  ", 10, progress.ReasonManual)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestAwardXP_TotalIsOrderIndependent(t *testing.T) {
	ctx := context.Background()

	a := newFixture(t)
	_, err := a.ledger.AwardXP(ctx, "u1", 100, progress.ReasonManual)
	require.NoError(t, err)
	first, err := a.ledger.AwardXP(ctx, "u1", 50, progress.ReasonManual)
	require.NoError(t, err)

	b := newFixture(t)
	_, err = b.ledger.AwardXP(ctx, "u1", 50, progress.ReasonManual)
	require.NoError(t, err)
	second, err := b.ledger.AwardXP(ctx, "u1", 100, progress.ReasonManual)
	require.NoError(t, err)

	assert.Equal(t, first.TotalXP, second.TotalXP)
	assert.Equal(t, first.NewLevel, second.NewLevel)
}

func TestAwardXP_ConcurrentAwardsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AwardXP(ctx, "u1", 20, progress.ReasonManual)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.AwardXP(ctx, "u1", 50, progress.ReasonManual)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), stats.TotalXP)
}

func TestAwardXP_ManyConcurrentAwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.AwardXP(ctx, "u1", 10, progress.ReasonManual)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), stats.TotalXP)

	entries, err := f.store.ListLedger(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, workers)
}

func TestPenalizeXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AwardXP(ctx, "u1", 150, progress.ReasonManual)
	require.NoError(t, err)

	res, err := f.ledger.PenalizeXP(ctx, "u1", 60, progress.ReasonHintPenalty)
	require.NoError(t, err)
	assert.Equal(t, int64(-60), res.XPAwarded)
	assert.Equal(t, int64(90), res.TotalXP)
	assert.Equal(t, 1, res.NewLevel)
	assert.True(t, res.LeveledDown)
	assert.False(t, res.LeveledUp)

	assert.Len(t, f.events.ofType(shared.EventXPPenalized), 1)
}

func TestPenalizeXP_RejectsMoreThanTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AwardXP(ctx, "u1", 30, progress.ReasonManual)
	require.NoError(t, err)

	_, err = f.ledger.PenalizeXP(ctx, "u1", 31, progress.ReasonHintPenalty)
	assert.ErrorIs(t, err, shared.ErrPenaltyTooLarge)

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), stats.TotalXP)
}

func TestApply_CombinesAwardsInOneWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.ledger.Apply(ctx, LedgerUpdate{
		UserID: "u1",
		Mutate: func(s *progress.UserStats, _ time.Time) ([]Award, error) {
			s.RecordLessonCompleted()
			return []Award{{Amount: 100, Reason: progress.ReasonLessonComplete}}, nil
		},
		Awards: []Award{
			{Amount: 50, Reason: progress.ReasonPerfectScore},
			{Amount: 25, Reason: progress.ReasonFirstTry},
		},
	})
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	assert.Equal(t, progress.ReasonLessonComplete, out.Awards[0].Reason)
	assert.Equal(t, int64(175), out.Combined.XPAwarded)
	assert.Equal(t, 1, out.Combined.OldLevel)
	assert.Equal(t, 2, out.Combined.NewLevel)
	assert.True(t, out.Combined.LeveledUp)
	assert.Equal(t, 1, out.Stats.LessonsCompleted)
	assert.Equal(t, int64(1), out.Stats.Version)

	entries, err := f.store.ListLedger(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, progress.ReasonFirstTry, entries[0].Reason, "newest first")
	assert.Equal(t, int64(175), entries[0].TotalXPAfter)

	assert.Len(t, f.events.ofType(shared.EventLevelUp), 1, "one level-up per write")
}
