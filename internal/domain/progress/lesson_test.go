package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

func TestSubmission_Validate(t *testing.T) {
	assert.NoError(t, Submission{Status: StatusCompleted, Score: 100}.Validate())
	assert.NoError(t, Submission{}.Validate())

	for _, bad := range []Submission{
		{Status: "finished"},
		{Score: 101},
		{Score: -1},
		{QuizScore: 150},
		{TimeSpent: -5},
		{ExercisesCompleted: []string{"ex1", ""}},
	} {
		assert.True(t, shared.IsInvalidInput(bad.Validate()), "%+v", bad)
	}
}

func TestProgressRecord_ApplyFirstCompletion(t *testing.T) {
	p := NewProgressRecord("u1", "select-basics", now)

	out := p.Apply(Submission{Status: StatusCompleted, Score: 100, TimeSpent: 60}, now)

	assert.Equal(t, 0, out.PreviousAttempts)
	assert.True(t, out.FirstCompletion)
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, int64(60), p.TimeSpent)
	assert.Equal(t, 100, p.MaxScore)
	assert.NotNil(t, p.FirstCompletedAt)

	later := now.Add(time.Hour)
	out = p.Apply(Submission{Status: StatusCompleted, Score: 80, TimeSpent: 30}, later)

	assert.False(t, out.FirstCompletion)
	assert.Equal(t, 1, out.PreviousAttempts)
	assert.Equal(t, now, *p.FirstCompletedAt)
	assert.Equal(t, 80, p.Score)
	assert.Equal(t, 100, p.MaxScore)
	assert.Equal(t, int64(90), p.TimeSpent)
}

func TestProgressRecord_StatusDoesNotRegress(t *testing.T) {
	p := NewProgressRecord("u1", "joins", now)
	p.Apply(Submission{Status: StatusMastered}, now)
	p.Apply(Submission{Status: StatusInProgress}, now)

	assert.Equal(t, StatusMastered, p.Status)
}

func TestProgressRecord_ExercisesAreUnioned(t *testing.T) {
	p := NewProgressRecord("u1", "joins", now)

	out := p.Apply(Submission{ExercisesCompleted: []string{"b", "a", "a"}}, now)
	assert.Equal(t, []string{"a", "b"}, out.NewExercises)

	out = p.Apply(Submission{ExercisesCompleted: []string{"b", "c"}}, now)
	assert.Equal(t, []string{"c"}, out.NewExercises)
	assert.Equal(t, []string{"a", "b", "c"}, p.ExercisesCompleted)

	out = p.Apply(Submission{ExercisesCompleted: []string{"a"}}, now)
	assert.Empty(t, out.NewExercises)
}

func TestProgressRecord_QuizOnlyCountsOnce(t *testing.T) {
	p := NewProgressRecord("u1", "joins", now)

	assert.False(t, p.Apply(Submission{}, now).FirstQuiz)
	assert.True(t, p.Apply(Submission{QuizScore: 60}, now).FirstQuiz)
	assert.False(t, p.Apply(Submission{QuizScore: 90}, now).FirstQuiz)
	assert.Equal(t, 90, p.QuizScore)
}

func TestRewards(t *testing.T) {
	r := DefaultRewards()
	assert.NoError(t, r.Validate())
	assert.Equal(t, int64(0), r.StreakBonusFor(0))
	assert.Equal(t, int64(30), r.StreakBonusFor(3))
	assert.Equal(t, int64(70), r.StreakBonusFor(30))

	r.QuizComplete = -1
	assert.True(t, shared.IsInvalidInput(r.Validate()))
}
