package progress

import (
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// StreakResult - результат обновления серии.
type StreakResult struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	StreakChanged bool `json:"streak_changed"`

	// Extended - серия продлена активностью на следующий день.
	Extended bool `json:"extended,omitempty"`

	// StreakBroken - ненулевая серия прервалась и началась заново.
	StreakBroken   bool `json:"streak_broken,omitempty"`
	PreviousStreak int  `json:"previous_streak,omitempty"`
	DaysMissed     int  `json:"days_missed,omitempty"`
}

// CheckActivityDay проверяет, что день не раньше последней активности.
// Ничего не изменяет.
func (s *UserStats) CheckActivityDay(day timeutil.Date) error {
	if s.LastActivityDate != nil && timeutil.DaysBetween(*s.LastActivityDate, day) < 0 {
		return shared.ErrBackdatedActivity
	}
	return nil
}

// RecordActivity применяет календарный день активности к серии.
//
// Правила по разнице дней с LastActivityDate:
//   - нет активности: серия = 1;
//   - 0: без изменений;
//   - 1: серия + 1;
//   - >1: серия сбрасывается в 1;
//   - <0: ошибка, статистика не изменяется.
//
// LastActivityDate обновляется при любом успешном вызове.
func (s *UserStats) RecordActivity(day timeutil.Date) (StreakResult, error) {
	if err := s.CheckActivityDay(day); err != nil {
		return StreakResult{}, err
	}

	result := StreakResult{}
	switch {
	case s.LastActivityDate == nil:
		s.CurrentStreak = 1
		result.StreakChanged = true
	default:
		diff := timeutil.DaysBetween(*s.LastActivityDate, day)
		switch {
		case diff == 0:
			// Тот же день.
		case diff == 1:
			s.CurrentStreak++
			result.StreakChanged = true
			result.Extended = true
		default:
			result.PreviousStreak = s.CurrentStreak
			result.StreakBroken = s.CurrentStreak > 0
			result.DaysMissed = diff - 1
			s.CurrentStreak = 1
			result.StreakChanged = true
		}
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	d := day
	s.LastActivityDate = &d

	result.CurrentStreak = s.CurrentStreak
	result.LongestStreak = s.LongestStreak
	return result, nil
}

// StreakAtRisk сообщает, что серия прервётся, если сегодня не будет активности.
func (s *UserStats) StreakAtRisk(today timeutil.Date) bool {
	if s.LastActivityDate == nil || s.CurrentStreak == 0 {
		return false
	}
	return timeutil.DaysBetween(*s.LastActivityDate, today) == 1
}
