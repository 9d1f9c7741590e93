package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

var now = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	stats := progress.NewUserStats("u1", now)
	_, err := stats.AddXP(450)
	require.NoError(t, err)
	_, err = stats.RecordActivity(timeutil.DateOf(now, time.UTC))
	require.NoError(t, err)
	stats.LessonsCompleted = 2
	stats.PracticeCompleted = 12
	stats.TotalTimeSpent = 900
	require.NoError(t, store.SaveStats(ctx, stats, 0,
		progress.LedgerEntry{ID: "e1", UserID: "u1", Amount: 400, Reason: progress.ReasonLessonComplete, TotalXPAfter: 400, LevelAfter: 3},
		progress.LedgerEntry{ID: "e2", UserID: "u1", Amount: 50, Reason: progress.ReasonPerfectScore, TotalXPAfter: 450, LevelAfter: 3},
	))

	for _, rec := range []*progress.ProgressRecord{
		{UserID: "u1", LessonID: "a", Status: progress.StatusCompleted, MaxScore: 100, Attempts: 1, IsBookmarked: true},
		{UserID: "u1", LessonID: "b", Status: progress.StatusMastered, MaxScore: 80, Attempts: 3},
		{UserID: "u1", LessonID: "c", Status: progress.StatusInProgress, MaxScore: 10, Attempts: 1},
	} {
		require.NoError(t, store.SaveProgress(ctx, rec))
	}

	def, ok := achievement.DefaultRegistry().Get("first_lesson")
	require.True(t, ok)
	_, err = store.InsertIfAbsent(ctx, achievement.NewRecord("u1", def, now))
	require.NoError(t, err)
	return store
}

func TestGetLevelProgress(t *testing.T) {
	store := seed(t)
	h := NewGetLevelProgressHandler(store)

	lp, err := h.Handle(context.Background(), GetLevelProgressQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 3, lp.Level)
	assert.Equal(t, int64(400), lp.LevelStartXP)
	assert.Equal(t, int64(900), lp.NextLevelXP)

	lp, err = h.Handle(context.Background(), GetLevelProgressQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, 1, lp.Level)
	assert.Zero(t, lp.CurrentXP)
}

func TestGetUserSummary(t *testing.T) {
	store := seed(t)
	h := NewGetUserSummaryHandler(store, store, store)

	dto, err := h.Handle(context.Background(), GetUserSummaryQuery{UserID: " u1 "})
	require.NoError(t, err)

	assert.Equal(t, "u1", dto.UserID)
	assert.Equal(t, 3, dto.Level.Level)
	assert.Equal(t, 1, dto.CurrentStreak)
	assert.Equal(t, "2024-03-10", dto.LastActivityDate)
	assert.Equal(t, 3, dto.LessonsStarted)
	assert.Equal(t, 5, dto.TotalAttempts)
	assert.InDelta(t, 90.0, dto.AverageScore, 0.001)
	assert.Equal(t, []string{"a"}, dto.Bookmarks)
	assert.Equal(t, 1, dto.AchievementsEarned)
	assert.Equal(t, 10, dto.AchievementPoints)
}

func TestGetUserSummary_RejectsEmptyUser(t *testing.T) {
	store := seed(t)
	_, err := NewGetUserSummaryHandler(store, store, store).Handle(context.Background(), GetUserSummaryQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestListAchievements(t *testing.T) {
	store := seed(t)
	h := NewListAchievementsHandler(achievement.DefaultRegistry(), store, store, store)

	out, err := h.Handle(context.Background(), ListAchievementsQuery{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, out.Earned, 1)
	assert.Equal(t, "first_lesson", out.Earned[0].ID)
	assert.NotNil(t, out.Earned[0].EarnedAt)
	assert.Equal(t, 10, out.TotalPoints)
	assert.Len(t, out.Available, 6)

	byID := map[string]AchievementDTO{}
	for _, a := range out.Available {
		byID[a.ID] = a
	}
	assert.Equal(t, int64(2), byID["five_lessons"].Current)
	assert.InDelta(t, 40.0, byID["five_lessons"].Percent, 0.001)
	assert.InDelta(t, 60.0, byID["practice_master"].Percent, 0.001)
	assert.InDelta(t, 100.0, byID["perfect_score"].Percent, 0.001, "not yet checked, but met")
}

func TestGetXPHistory(t *testing.T) {
	store := seed(t)
	h := NewGetXPHistoryHandler(store)

	entries, err := h.Handle(context.Background(), GetXPHistoryQuery{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e2", entries[0].ID)

	entries, err = h.Handle(context.Background(), GetXPHistoryQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}
