package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/application/command"
	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

var jan1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t shared.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type harness struct {
	saga   *CompleteLessonSaga
	store  *memory.Store
	events *recorder
}

func newHarness(t *testing.T, registry *achievement.Registry) *harness {
	t.Helper()
	if registry == nil {
		registry = achievement.DefaultRegistry()
	}

	store := memory.NewStore()
	events := &recorder{}
	log := logger.Nop()

	updater := command.NewStatsUpdater(store, command.StatsUpdaterConfig{
		MaxAttempts: 20,
		Clock:       timeutil.FixedClock{T: jan1},
	})
	ledger := command.NewXPLedger(updater, events, log, command.XPLedgerConfig{})
	streaks := command.NewStreakTracker(updater, time.UTC, events, log)
	checker := command.NewAchievementChecker(registry, store, store, updater, ledger, events, log)

	return &harness{
		saga: NewCompleteLessonSaga(store, memory.NewLocker(), updater, ledger, streaks, checker,
			events, log, DefaultCompleteLessonConfig()),
		store:  store,
		events: events,
	}
}

func completed(score int, at time.Time) progress.Submission {
	return progress.Submission{Status: progress.StatusCompleted, Score: score, TimeSpent: 300, SubmittedAt: at}
}

func TestCompleteLesson_FirstPerfectCompletion(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.saga.Execute(context.Background(), CompleteLessonInput{
		UserID:     "u1",
		LessonID:   "select-basics",
		Submission: completed(100, jan1),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(175), res.XP.XPAwarded)
	assert.Equal(t, int64(175), res.XP.TotalXP)
	assert.Equal(t, 1, res.XP.OldLevel)
	assert.Equal(t, 2, res.XP.NewLevel)
	assert.True(t, res.XP.LeveledUp)
	require.Len(t, res.Awards, 3)
	assert.Equal(t, progress.ReasonLessonComplete, res.Awards[0].Reason)
	assert.Equal(t, progress.ReasonPerfectScore, res.Awards[1].Reason)
	assert.Equal(t, progress.ReasonFirstTry, res.Awards[2].Reason)

	assert.Equal(t, 1, res.Progress.Attempts)
	assert.NotNil(t, res.Progress.FirstCompletedAt)
	assert.Equal(t, 1, res.Streak.CurrentStreak)

	ids := make([]string, 0, len(res.NewAchievements))
	for _, r := range res.NewAchievements {
		ids = append(ids, r.AchievementID)
	}
	assert.Equal(t, []string{"first_lesson", "perfect_score"}, ids)
	assert.Equal(t, int64(125), res.AchievementXP)

	assert.Equal(t, int64(300), res.Stats.TotalXP)
	assert.Equal(t, 1, res.Stats.LessonsCompleted)
	assert.Equal(t, int64(300), res.Stats.TotalTimeSpent)

	assert.Equal(t, 1, h.events.count(shared.EventLessonCompleted))
	assert.Equal(t, 1, h.events.count(shared.EventLevelUp))
	assert.Equal(t, 2, h.events.count(shared.EventAchievementUnlocked))
}

func TestCompleteLesson_RepeatCompletionAwardsNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	in := CompleteLessonInput{UserID: "u1", LessonID: "joins", Submission: completed(80, jan1)}

	_, err := h.saga.Execute(ctx, in)
	require.NoError(t, err)

	in.Submission = completed(100, jan1.Add(time.Hour))
	res, err := h.saga.Execute(ctx, in)
	require.NoError(t, err)

	assert.Zero(t, res.XP.XPAwarded)
	assert.False(t, res.XP.LeveledUp)
	assert.Equal(t, 2, res.Progress.Attempts)
	assert.Equal(t, 100, res.Progress.MaxScore)
	assert.Equal(t, 1, res.Stats.LessonsCompleted)

	require.Len(t, res.NewAchievements, 1, "perfect score across lessons still counts")
	assert.Equal(t, "perfect_score", res.NewAchievements[0].AchievementID)
}

func TestCompleteLesson_FirstTryOnlyOnFirstSubmission(t *testing.T) {
	h := newHarness(t, achievementlessRegistry(t))
	ctx := context.Background()

	_, err := h.saga.Execute(ctx, CompleteLessonInput{
		UserID: "u1", LessonID: "joins",
		Submission: progress.Submission{Status: progress.StatusInProgress, Score: 40, SubmittedAt: jan1},
	})
	require.NoError(t, err)

	res, err := h.saga.Execute(ctx, CompleteLessonInput{
		UserID: "u1", LessonID: "joins", Submission: completed(90, jan1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.XP.XPAwarded, "lesson reward only")
}

func TestCompleteLesson_PracticeAndQuiz(t *testing.T) {
	h := newHarness(t, achievementlessRegistry(t))
	ctx := context.Background()
	in := CompleteLessonInput{
		UserID:   "u1",
		LessonID: "aggregates",
		Submission: progress.Submission{
			Status:             progress.StatusInProgress,
			ExercisesCompleted: []string{"ex1", "ex2"},
			QuizScore:          70,
			SubmittedAt:        jan1,
		},
	}

	res, err := h.saga.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(2*50+75), res.XP.XPAwarded)
	assert.Equal(t, 2, res.Stats.PracticeCompleted)
	assert.Equal(t, 1, res.Stats.QuizzesCompleted)

	in.Submission.ExercisesCompleted = []string{"ex2", "ex3"}
	in.Submission.QuizScore = 90
	res, err = h.saga.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.XP.XPAwarded, "only the new exercise; quiz rewarded once")
	assert.Equal(t, 3, res.Stats.PracticeCompleted)
	assert.Equal(t, 1, res.Stats.QuizzesCompleted)
	assert.Equal(t, []string{"ex1", "ex2", "ex3"}, res.Progress.ExercisesCompleted)
}

func TestCompleteLesson_StreakBonusOnConsecutiveDay(t *testing.T) {
	h := newHarness(t, achievementlessRegistry(t))
	ctx := context.Background()

	_, err := h.saga.Execute(ctx, CompleteLessonInput{UserID: "u1", LessonID: "l1", Submission: completed(50, jan1)})
	require.NoError(t, err)

	res, err := h.saga.Execute(ctx, CompleteLessonInput{
		UserID: "u1", LessonID: "l2", Submission: completed(50, jan1.AddDate(0, 0, 1)),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Streak.CurrentStreak)
	assert.Equal(t, int64(100+25+2*10), res.XP.XPAwarded)
	assert.Equal(t, progress.ReasonStreakBonus, res.Awards[len(res.Awards)-1].Reason)
}

func TestCompleteLesson_RejectsBackdatedBeforeAnyWrite(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.saga.Execute(ctx, CompleteLessonInput{
		UserID: "u1", LessonID: "l1", Submission: completed(50, jan1.AddDate(0, 0, 3)),
	})
	require.NoError(t, err)

	_, err = h.saga.Execute(ctx, CompleteLessonInput{
		UserID: "u1", LessonID: "l2", Submission: completed(50, jan1),
	})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidInput(err))

	var sagaErr *CompleteLessonError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, StepCheckDay, sagaErr.Step)

	_, err = h.store.GetProgress(ctx, "u1", "l2")
	assert.True(t, shared.IsNotFound(err), "no lesson record for a rejected submission")
}

func TestCompleteLesson_ValidatesInput(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CompleteLessonInput
	}{
		{"missing lesson", CompleteLessonInput{UserID: "u1", Submission: completed(10, jan1)}},
		{"missing user", CompleteLessonInput{LessonID: "l1", Submission: completed(10, jan1)}},
		{"score too high", CompleteLessonInput{UserID: "u1", LessonID: "l1", Submission: completed(101, jan1)}},
		{"unknown status", CompleteLessonInput{UserID: "u1", LessonID: "l1", Submission: progress.Submission{Status: "done"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.saga.Execute(ctx, tt.in)
			assert.True(t, shared.IsInvalidInput(err))
		})
	}

	_, err := h.store.GetStats(ctx, "u1")
	assert.True(t, shared.IsNotFound(err))
}

func TestCompleteLesson_ConcurrentSubmissionsOfOneUser(t *testing.T) {
	h := newHarness(t, achievementlessRegistry(t))
	ctx := context.Background()

	lessons := []string{"l1", "l2", "l3", "l4", "l5", "l6"}
	var wg sync.WaitGroup
	for _, id := range lessons {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.saga.Execute(ctx, CompleteLessonInput{UserID: "u1", LessonID: id, Submission: completed(50, jan1)})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	stats, err := h.store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, len(lessons), stats.LessonsCompleted)
	assert.Equal(t, int64(len(lessons)*125), stats.TotalXP)
}

// achievementlessRegistry keeps XP arithmetic in tests free of achievement rewards.
func achievementlessRegistry(t *testing.T) *achievement.Registry {
	t.Helper()
	r, err := achievement.NewRegistry()
	require.NoError(t, err)
	return r
}
