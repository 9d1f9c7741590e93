package progress

import (
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS
// ══════════════════════════════════════════════════════════════════════════════

// UserStats - агрегированная статистика ученика. Единственный общий
// изменяемый ресурс движка; все изменения идут через compare-and-swap по Version.
type UserStats struct {
	// UserID - неизменяемый идентификатор пользователя.
	UserID string `json:"user_id"`

	// TotalXP - суммарный XP (>= 0).
	TotalXP int64 `json:"total_xp"`

	// Level - всегда LevelForXP(TotalXP).
	Level int `json:"level"`

	// CurrentStreak - текущая серия дней активности.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - лучшая серия дней (>= CurrentStreak).
	LongestStreak int `json:"longest_streak"`

	// LastActivityDate - календарный день последней активности (nil до первой).
	LastActivityDate *timeutil.Date `json:"last_activity_date,omitempty"`

	// Счётчики.
	LessonsCompleted  int `json:"lessons_completed"`
	PracticeCompleted int `json:"practice_completed"`
	QuizzesCompleted  int `json:"quizzes_completed"`

	// TotalTimeSpent - суммарное время в уроках, секунды.
	TotalTimeSpent int64 `json:"total_time_spent"`

	// Version - счётчик оптимистичной блокировки. 0 означает "ещё не сохранено".
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserStats создаёт статистику с нулевыми значениями (уровень 1).
func NewUserStats(userID string, now time.Time) *UserStats {
	return &UserStats{
		UserID:    userID,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone возвращает глубокую копию.
func (s *UserStats) Clone() *UserStats {
	c := *s
	if s.LastActivityDate != nil {
		d := *s.LastActivityDate
		c.LastActivityDate = &d
	}
	return &c
}

// Validate проверяет инварианты статистики.
func (s *UserStats) Validate() error {
	if s.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if s.TotalXP < 0 {
		return shared.ErrNegativeXP
	}
	if s.Level != levelFor(s.TotalXP) {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "level does not match total xp")
	}
	if s.CurrentStreak < 0 || s.LongestStreak < s.CurrentStreak {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "streak invariants violated")
	}
	if s.LessonsCompleted < 0 || s.PracticeCompleted < 0 || s.QuizzesCompleted < 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrNegativeValue, "counters cannot be negative")
	}
	return nil
}

// XPResult - результат одного движения XP.
type XPResult struct {
	XPAwarded   int64 `json:"xp_awarded"`
	TotalXP     int64 `json:"total_xp"`
	OldLevel    int   `json:"old_level"`
	NewLevel    int   `json:"new_level"`
	LeveledUp   bool  `json:"leveled_up"`
	LeveledDown bool  `json:"leveled_down,omitempty"`
}

// AddXP начисляет неотрицательное количество XP и пересчитывает уровень.
func (s *UserStats) AddXP(amount int64) (XPResult, error) {
	if amount < 0 {
		return XPResult{}, shared.ErrNegativeXP
	}
	return s.applyDelta(amount), nil
}

// DeductXP списывает XP (штраф). Штраф больше текущего XP отклоняется,
// уровень может понизиться.
func (s *UserStats) DeductXP(amount int64) (XPResult, error) {
	if amount < 0 {
		return XPResult{}, shared.ErrNegativeXP
	}
	if amount > s.TotalXP {
		return XPResult{}, shared.ErrPenaltyTooLarge
	}
	return s.applyDelta(-amount), nil
}

func (s *UserStats) applyDelta(delta int64) XPResult {
	oldLevel := s.Level
	s.TotalXP += delta
	s.Level = levelFor(s.TotalXP)
	return XPResult{
		XPAwarded:   delta,
		TotalXP:     s.TotalXP,
		OldLevel:    oldLevel,
		NewLevel:    s.Level,
		LeveledUp:   s.Level > oldLevel,
		LeveledDown: s.Level < oldLevel,
	}
}

// RecordLessonCompleted увеличивает счётчик пройденных уроков.
func (s *UserStats) RecordLessonCompleted() {
	s.LessonsCompleted++
}

// RecordPractice увеличивает счётчик решённых упражнений.
func (s *UserStats) RecordPractice(count int) {
	if count > 0 {
		s.PracticeCompleted += count
	}
}

// RecordQuizCompleted увеличивает счётчик пройденных квизов.
func (s *UserStats) RecordQuizCompleted() {
	s.QuizzesCompleted++
}

// AddTimeSpent накапливает время в уроках.
func (s *UserStats) AddTimeSpent(seconds int64) {
	if seconds > 0 {
		s.TotalTimeSpent += seconds
	}
}
