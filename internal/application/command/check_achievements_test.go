package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

func def(id string, reward int64, rule achievement.Rule) achievement.Definition {
	return achievement.Definition{
		ID:       id,
		Type:     achievement.TypeSpecial,
		Title:    id,
		RewardXP: reward,
		Points:   1,
		Rarity:   achievement.RarityCommon,
		Rule:     rule,
	}
}

func snapshotWithLessons(t *testing.T, f *fixture, userID string, lessons int) achievement.Snapshot {
	t.Helper()
	stats, err := f.updater.Update(context.Background(), userID, func(s *progress.UserStats, _ time.Time) ([]progress.LedgerEntry, error) {
		for i := 0; i < lessons; i++ {
			s.RecordLessonCompleted()
		}
		return nil, nil
	})
	require.NoError(t, err)
	return achievement.NewSnapshot(stats, nil)
}

func TestCheckAchievements_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := snapshotWithLessons(t, f, "u1", 1)

	first, err := f.checker.CheckAchievements(ctx, "u1", snap)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "first_lesson", first[0].AchievementID)

	second, err := f.checker.CheckAchievements(ctx, "u1", snap)
	require.NoError(t, err)
	assert.Empty(t, second)

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.TotalXP, "reward granted once")

	entries, err := f.store.ListLedger(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, progress.AchievementReason("first_lesson"), entries[0].Reason)

	assert.Len(t, f.events.ofType(shared.EventAchievementUnlocked), 1)
}

func TestCheckAchievements_EvaluatesInIDOrder(t *testing.T) {
	f := newFixture(t,
		def("b_second", 10, achievement.Rule{Kind: achievement.RuleLessonsCompleted, Threshold: 1}),
		def("a_first", 10, achievement.Rule{Kind: achievement.RuleLessonsCompleted, Threshold: 1}),
		def("c_never", 10, achievement.Rule{Kind: achievement.RuleLessonsCompleted, Threshold: 99}),
	)
	snap := snapshotWithLessons(t, f, "u1", 1)

	got, err := f.checker.CheckAchievements(context.Background(), "u1", snap)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a_first", got[0].AchievementID)
	assert.Equal(t, "b_second", got[1].AchievementID)
}

func TestCheckAchievements_SkipsFailingRules(t *testing.T) {
	f := newFixture(t,
		def("boom", 10, achievement.Rule{Custom: func(achievement.Snapshot) (bool, error) {
			panic("broken rule")
		}}),
		def("err", 10, achievement.Rule{Custom: func(achievement.Snapshot) (bool, error) {
			return false, errors.New("lookup failed")
		}}),
		def("ok", 10, achievement.Rule{Kind: achievement.RuleLessonsCompleted, Threshold: 1}),
	)
	snap := snapshotWithLessons(t, f, "u1", 1)

	got, err := f.checker.CheckAchievements(context.Background(), "u1", snap)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].AchievementID)
}

func TestCheckAchievements_RewardDoesNotRetrigger(t *testing.T) {
	f := newFixture(t,
		def("lesson", 500, achievement.Rule{Kind: achievement.RuleLessonsCompleted, Threshold: 1}),
		def("level_three", 10, achievement.Rule{Kind: achievement.RuleLevelAtLeast, Threshold: 3}),
	)
	snap := snapshotWithLessons(t, f, "u1", 1)

	got, err := f.checker.CheckAchievements(context.Background(), "u1", snap)
	require.NoError(t, err)
	require.Len(t, got, 1, "level reached through the reward is seen on the next check only")

	stats, err := f.store.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Level)

	got, err = f.checker.CheckForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "level_three", got[0].AchievementID)
}

func TestCheckAchievements_ConcurrentChecksGrantOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := snapshotWithLessons(t, f, "u1", 1)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.checker.CheckAchievements(ctx, "u1", snap)
			assert.NoError(t, err)
			mu.Lock()
			granted += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)

	records, err := f.store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	stats, err := f.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.TotalXP)
}
