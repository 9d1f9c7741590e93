package progress

import (
	"time"
)

// Reason - причина движения XP в журнале.
type Reason string

const (
	ReasonLessonComplete   Reason = "lesson_complete"
	ReasonPracticeComplete Reason = "practice_complete"
	ReasonQuizComplete     Reason = "quiz_complete"
	ReasonPerfectScore     Reason = "perfect_score"
	ReasonFirstTry         Reason = "first_try"
	ReasonStreakBonus      Reason = "streak_bonus"
	ReasonBookmark         Reason = "bookmark"
	ReasonNoteAdded        Reason = "note_added"
	ReasonHintPenalty      Reason = "hint_penalty"
	ReasonManual           Reason = "manual"

	// reasonAchievementPrefix + ID достижения.
	reasonAchievementPrefix = "achievement:"
)

// AchievementReason возвращает причину начисления за достижение.
func AchievementReason(achievementID string) Reason {
	return Reason(reasonAchievementPrefix + achievementID)
}

// LedgerEntry - запись журнала XP. Сохраняется атомарно вместе с
// обновлением UserStats, которое она описывает.
type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       int64     `json:"amount"`
	Reason       Reason    `json:"reason"`
	TotalXPAfter int64     `json:"total_xp_after"`
	LevelAfter   int       `json:"level_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewLedgerEntry создаёт запись журнала по результату движения XP.
func NewLedgerEntry(id, userID string, reason Reason, res XPResult, now time.Time) LedgerEntry {
	return LedgerEntry{
		ID:           id,
		UserID:       userID,
		Amount:       res.XPAwarded,
		Reason:       reason,
		TotalXPAfter: res.TotalXP,
		LevelAfter:   res.NewLevel,
		CreatedAt:    now,
	}
}
