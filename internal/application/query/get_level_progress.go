// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEVEL PROGRESS QUERY
// Уровень пользователя и прогресс до следующего уровня.
// ══════════════════════════════════════════════════════════════════════════════

// GetLevelProgressQuery содержит параметры запроса.
type GetLevelProgressQuery struct {
	UserID string
}

// Validate проверяет корректность параметров.
func (q *GetLevelProgressQuery) Validate() error {
	id, err := shared.NormalizeID("progress", "GetLevelProgress", "user_id", q.UserID)
	if err != nil {
		return err
	}
	q.UserID = id
	return nil
}

// GetLevelProgressHandler обрабатывает запрос.
type GetLevelProgressHandler struct {
	stats progress.StatsRepository
}

// NewGetLevelProgressHandler создаёт обработчик.
func NewGetLevelProgressHandler(stats progress.StatsRepository) *GetLevelProgressHandler {
	return &GetLevelProgressHandler{stats: stats}
}

// Handle возвращает прогресс уровня. Для пользователя без активности
// это уровень 1 с нулевым XP.
func (h *GetLevelProgressHandler) Handle(ctx context.Context, q GetLevelProgressQuery) (progress.LevelProgress, error) {
	if err := q.Validate(); err != nil {
		return progress.LevelProgress{}, err
	}
	stats, err := loadStats(ctx, h.stats, q.UserID)
	if err != nil {
		return progress.LevelProgress{}, err
	}
	return progress.LevelProgressFor(stats.TotalXP)
}

// loadStats читает статистику; отсутствие записи даёт нулевую статистику.
func loadStats(ctx context.Context, repo progress.StatsRepository, userID string) (*progress.UserStats, error) {
	stats, err := repo.GetStats(ctx, userID)
	if shared.IsNotFound(err) {
		var zero progress.UserStats
		zero.UserID = userID
		zero.Level = 1
		return &zero, nil
	}
	return stats, err
}
