package progress

import (
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// MaxStreakBonusDays ограничивает множитель бонуса за серию.
const MaxStreakBonusDays = 7

// Rewards - таблица наград XP. Передаётся в агрегатор при создании,
// глобального изменяемого состояния нет.
type Rewards struct {
	LessonComplete   int64 `yaml:"lesson_complete" json:"lesson_complete"`
	PracticeComplete int64 `yaml:"practice_complete" json:"practice_complete"` // за каждое новое упражнение
	QuizComplete     int64 `yaml:"quiz_complete" json:"quiz_complete"`
	PerfectScore     int64 `yaml:"perfect_score" json:"perfect_score"`
	FirstTry         int64 `yaml:"first_try" json:"first_try"`
	StreakBonus      int64 `yaml:"streak_bonus" json:"streak_bonus"` // за день серии, 0 - выключено
	Bookmark         int64 `yaml:"bookmark" json:"bookmark"`
	NoteAdded        int64 `yaml:"note_added" json:"note_added"`
}

// DefaultRewards возвращает стандартную таблицу наград.
func DefaultRewards() Rewards {
	return Rewards{
		LessonComplete:   100,
		PracticeComplete: 50,
		QuizComplete:     75,
		PerfectScore:     50,
		FirstTry:         25,
		StreakBonus:      10,
		Bookmark:         5,
		NoteAdded:        10,
	}
}

// Validate проверяет, что все награды неотрицательны.
func (r Rewards) Validate() error {
	for name, v := range map[string]int64{
		"lesson_complete":   r.LessonComplete,
		"practice_complete": r.PracticeComplete,
		"quiz_complete":     r.QuizComplete,
		"perfect_score":     r.PerfectScore,
		"first_try":         r.FirstTry,
		"streak_bonus":      r.StreakBonus,
		"bookmark":          r.Bookmark,
		"note_added":        r.NoteAdded,
	} {
		if v < 0 {
			return shared.Invalid("progress", "Rewards.Validate", "reward %s is negative", name)
		}
	}
	return nil
}

// StreakBonusFor возвращает бонус за продление серии до streak дней.
func (r Rewards) StreakBonusFor(streak int) int64 {
	if streak <= 0 || r.StreakBonus <= 0 {
		return 0
	}
	if streak > MaxStreakBonusDays {
		streak = MaxStreakBonusDays
	}
	return r.StreakBonus * int64(streak)
}
