package achievement

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

func snapshot(mutate func(s *progress.UserStats), lessons ...*progress.ProgressRecord) Snapshot {
	stats := progress.NewUserStats("u1", time.Now())
	if mutate != nil {
		mutate(stats)
	}
	return NewSnapshot(stats, lessons)
}

func ids(defs []Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ID)
	}
	return out
}

func TestDefaultRegistry_SortedByID(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, []string{
		"first_lesson", "five_lessons", "perfect_score", "practice_master",
		"quiz_champion", "ten_lessons", "week_streak",
	}, ids(reg.Definitions()))

	def, ok := reg.Get("week_streak")
	require.True(t, ok)
	assert.Equal(t, int64(150), def.RewardXP)
	assert.Equal(t, RarityRare, def.Rarity)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	d := Definition{ID: "a", Type: TypeSpecial, Rarity: RarityCommon, Rule: Rule{Kind: RuleLevelAtLeast, Threshold: 2}}

	_, err := NewRegistry(d, d)
	assert.ErrorIs(t, err, shared.ErrDuplicateDefinition)
}

func TestNewRegistry_RejectsUnknownKind(t *testing.T) {
	d := Definition{ID: "a", Type: TypeSpecial, Rarity: RarityCommon, Rule: Rule{Kind: "moon_phase", Threshold: 1}}

	_, err := NewRegistry(d)
	assert.ErrorIs(t, err, shared.ErrUnknownRuleKind)
	assert.True(t, shared.IsInvalidInput(err))
}

func TestPending_ThresholdsAreInclusive(t *testing.T) {
	reg := DefaultRegistry()

	snap := snapshot(func(s *progress.UserStats) {
		s.LessonsCompleted = 6
		s.CurrentStreak = 8
		s.LongestStreak = 8
	})
	matched, failures := reg.Pending(snap, nil)

	assert.Empty(t, failures)
	assert.Equal(t, []string{"first_lesson", "five_lessons", "week_streak"}, ids(matched))
}

func TestPending_SkipsEarned(t *testing.T) {
	reg := DefaultRegistry()
	snap := snapshot(func(s *progress.UserStats) { s.LessonsCompleted = 1 })

	matched, _ := reg.Pending(snap, map[string]struct{}{"first_lesson": {}})
	assert.Empty(t, matched)
}

func TestPending_PerfectScoreUsesLessons(t *testing.T) {
	reg := DefaultRegistry()
	lesson := progress.NewProgressRecord("u1", "l1", time.Now())
	lesson.Apply(progress.Submission{Status: progress.StatusCompleted, Score: 100}, time.Now())

	matched, _ := reg.Pending(snapshot(nil, lesson), nil)
	assert.Contains(t, ids(matched), "perfect_score")
}

func TestPending_BadRuleDoesNotBlockOthers(t *testing.T) {
	reg, err := NewRegistry(
		Definition{ID: "a_panics", Type: TypeSpecial, Rarity: RarityEpic, Rule: Rule{Custom: func(Snapshot) (bool, error) {
			panic("boom")
		}}},
		Definition{ID: "b_errors", Type: TypeSpecial, Rarity: RarityEpic, Rule: Rule{Custom: func(Snapshot) (bool, error) {
			return false, errors.New("no data")
		}}},
		Definition{ID: "c_ok", Type: TypeSpecial, Rarity: RarityCommon, Rule: Rule{Kind: RuleLevelAtLeast, Threshold: 1}},
	)
	require.NoError(t, err)

	matched, failures := reg.Pending(snapshot(nil), nil)

	assert.Equal(t, []string{"c_ok"}, ids(matched))
	require.Len(t, failures, 2)
	assert.Equal(t, "a_panics", failures[0].AchievementID)
	assert.Equal(t, "b_errors", failures[1].AchievementID)
}

func TestLoadRegistry(t *testing.T) {
	src := `
achievements:
  - id: xp_1000
    type: special
    title: Kilo
    reward_xp: 10
    rarity: epic
    rule: { kind: total_xp_at_least, threshold: 1000 }
`
	reg, err := LoadRegistry(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	matched, _ := reg.Pending(snapshot(func(s *progress.UserStats) { s.TotalXP = 1000 }), nil)
	assert.Equal(t, []string{"xp_1000"}, ids(matched))

	_, err = LoadRegistry(strings.NewReader("achievements:\n  - id: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestRule_Measure(t *testing.T) {
	snap := snapshot(func(s *progress.UserStats) {
		s.PracticeCompleted = 12
		s.TotalTimeSpent = 3600
	})

	assert.Equal(t, int64(12), Rule{Kind: RulePracticeCompleted, Threshold: 20}.Measure(snap))
	assert.Equal(t, int64(3600), Rule{Kind: RuleTimeSpentAtLeast, Threshold: 7200}.Measure(snap))
	assert.Equal(t, int64(100), Rule{Kind: RulePerfectScore}.Target())
}
