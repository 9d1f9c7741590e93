package query

import (
	"context"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER SUMMARY QUERY
// Сводка для профиля: уровень, серии, счётчики и агрегаты по урокам.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserSummaryQuery содержит параметры запроса.
type GetUserSummaryQuery struct {
	UserID string
}

// Validate проверяет корректность параметров.
func (q *GetUserSummaryQuery) Validate() error {
	id, err := shared.NormalizeID("progress", "GetUserSummary", "user_id", q.UserID)
	if err != nil {
		return err
	}
	q.UserID = id
	return nil
}

// UserSummaryDTO - сводка пользователя.
type UserSummaryDTO struct {
	UserID string                 `json:"user_id"`
	Level  progress.LevelProgress `json:"level"`

	// ─────────────────────────────────────────────────────────────────────────
	// Серии
	// ─────────────────────────────────────────────────────────────────────────

	CurrentStreak    int    `json:"current_streak"`
	LongestStreak    int    `json:"longest_streak"`
	LastActivityDate string `json:"last_activity_date,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Счётчики
	// ─────────────────────────────────────────────────────────────────────────

	LessonsCompleted  int `json:"lessons_completed"`
	PracticeCompleted int `json:"practice_completed"`
	QuizzesCompleted  int `json:"quizzes_completed"`

	// ─────────────────────────────────────────────────────────────────────────
	// Агрегаты по урокам
	// ─────────────────────────────────────────────────────────────────────────

	// LessonsStarted - уроков с любой записью прогресса.
	LessonsStarted int `json:"lessons_started"`

	// AverageScore - средний лучший балл по пройденным урокам.
	AverageScore float64 `json:"average_score"`

	// TotalTimeSpent - секунды во всех уроках.
	TotalTimeSpent int64 `json:"total_time_spent"`

	// TotalAttempts - число отправок по всем урокам.
	TotalAttempts int `json:"total_attempts"`

	// Bookmarks - уроки в закладках, по ID.
	Bookmarks []string `json:"bookmarks"`

	// AchievementsEarned и AchievementPoints - по полученным достижениям.
	AchievementsEarned int `json:"achievements_earned"`
	AchievementPoints  int `json:"achievement_points"`
}

// GetUserSummaryHandler обрабатывает запрос.
type GetUserSummaryHandler struct {
	stats        progress.StatsRepository
	progress     progress.ProgressRepository
	achievements achievement.Repository
}

// NewGetUserSummaryHandler создаёт обработчик.
func NewGetUserSummaryHandler(
	stats progress.StatsRepository,
	progressRepo progress.ProgressRepository,
	achievements achievement.Repository,
) *GetUserSummaryHandler {
	return &GetUserSummaryHandler{
		stats:        stats,
		progress:     progressRepo,
		achievements: achievements,
	}
}

// Handle собирает сводку.
func (h *GetUserSummaryHandler) Handle(ctx context.Context, q GetUserSummaryQuery) (*UserSummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	stats, err := loadStats(ctx, h.stats, q.UserID)
	if err != nil {
		return nil, err
	}
	lessons, err := h.progress.ListProgress(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	earned, err := h.achievements.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	level, err := progress.LevelProgressFor(stats.TotalXP)
	if err != nil {
		return nil, err
	}

	dto := &UserSummaryDTO{
		UserID:             q.UserID,
		Level:              level,
		CurrentStreak:      stats.CurrentStreak,
		LongestStreak:      stats.LongestStreak,
		LessonsCompleted:   stats.LessonsCompleted,
		PracticeCompleted:  stats.PracticeCompleted,
		QuizzesCompleted:   stats.QuizzesCompleted,
		LessonsStarted:     len(lessons),
		TotalTimeSpent:     stats.TotalTimeSpent,
		Bookmarks:          []string{},
		AchievementsEarned: len(earned),
	}
	if stats.LastActivityDate != nil {
		dto.LastActivityDate = stats.LastActivityDate.String()
	}

	var scoreSum, completed int
	for _, l := range lessons {
		dto.TotalAttempts += l.Attempts
		if l.IsBookmarked {
			dto.Bookmarks = append(dto.Bookmarks, l.LessonID)
		}
		if l.Status.IsCompleted() {
			scoreSum += l.MaxScore
			completed++
		}
	}
	if completed > 0 {
		dto.AverageScore = float64(scoreSum) / float64(completed)
	}
	for _, r := range earned {
		dto.AchievementPoints += r.Points
	}
	return dto, nil
}
