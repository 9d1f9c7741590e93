package achievement

import (
	"fmt"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// RuleKind - тег варианта правила.
type RuleKind string

const (
	RuleLessonsCompleted  RuleKind = "lessons_completed"
	RulePracticeCompleted RuleKind = "practice_completed"
	RuleQuizzesCompleted  RuleKind = "quizzes_completed"
	RuleStreakAtLeast     RuleKind = "streak_at_least"
	RulePerfectScore      RuleKind = "perfect_score"
	RuleLevelAtLeast      RuleKind = "level_at_least"
	RuleTotalXPAtLeast    RuleKind = "total_xp_at_least"
	RuleTimeSpentAtLeast  RuleKind = "time_spent_at_least"
)

// Snapshot - неизменяемый снимок состояния ученика для проверки правил.
type Snapshot struct {
	Stats   progress.UserStats
	Lessons []progress.ProgressRecord
}

// NewSnapshot копирует статистику и прогресс в снимок.
func NewSnapshot(stats *progress.UserStats, lessons []*progress.ProgressRecord) Snapshot {
	snap := Snapshot{Stats: *stats.Clone(), Lessons: make([]progress.ProgressRecord, 0, len(lessons))}
	for _, l := range lessons {
		snap.Lessons = append(snap.Lessons, *l.Clone())
	}
	return snap
}

// Predicate - правило, заданное кодом. Используется для особых достижений,
// которые нельзя выразить тегом.
type Predicate func(Snapshot) (bool, error)

// Rule - декларативное правило: вид и порог. Сравнение всегда ">=".
type Rule struct {
	Kind      RuleKind  `yaml:"kind" json:"kind"`
	Threshold int64     `yaml:"threshold" json:"threshold"`
	Custom    Predicate `yaml:"-" json:"-"`
}

// Validate проверяет вид и порог.
func (r Rule) Validate() error {
	if r.Custom != nil {
		return nil
	}
	switch r.Kind {
	case RuleLessonsCompleted, RulePracticeCompleted, RuleQuizzesCompleted,
		RuleStreakAtLeast, RuleLevelAtLeast, RuleTotalXPAtLeast, RuleTimeSpentAtLeast:
		if r.Threshold <= 0 {
			return shared.Invalid("achievement", "Rule.Validate", "rule %s needs a positive threshold", r.Kind)
		}
	case RulePerfectScore:
		if r.Threshold < 0 || r.Threshold > progress.MaxScore {
			return shared.Invalid("achievement", "Rule.Validate", "perfect_score threshold out of range")
		}
	default:
		return shared.WrapError("achievement", "Rule.Validate", shared.ErrInvalidInput, fmt.Sprintf("kind %q", r.Kind), shared.ErrUnknownRuleKind)
	}
	return nil
}

// Measure возвращает текущее значение метрики правила.
func (r Rule) Measure(s Snapshot) int64 {
	switch r.Kind {
	case RuleLessonsCompleted:
		return int64(s.Stats.LessonsCompleted)
	case RulePracticeCompleted:
		return int64(s.Stats.PracticeCompleted)
	case RuleQuizzesCompleted:
		return int64(s.Stats.QuizzesCompleted)
	case RuleStreakAtLeast:
		return int64(s.Stats.CurrentStreak)
	case RuleLevelAtLeast:
		return int64(s.Stats.Level)
	case RuleTotalXPAtLeast:
		return s.Stats.TotalXP
	case RuleTimeSpentAtLeast:
		return s.Stats.TotalTimeSpent
	case RulePerfectScore:
		var best int64
		for _, l := range s.Lessons {
			if int64(l.MaxScore) > best {
				best = int64(l.MaxScore)
			}
		}
		return best
	}
	return 0
}

// Target возвращает порог правила.
func (r Rule) Target() int64 {
	if r.Kind == RulePerfectScore && r.Threshold == 0 {
		return progress.MaxScore
	}
	return r.Threshold
}

// Evaluate проверяет правило на снимке.
func (r Rule) Evaluate(s Snapshot) (bool, error) {
	if r.Custom != nil {
		return r.Custom(s)
	}
	if err := r.Validate(); err != nil {
		return false, err
	}
	return r.Measure(s) >= r.Target(), nil
}
