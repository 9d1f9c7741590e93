package query

import (
	"context"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS QUERY
// Полученные и доступные достижения с прогрессом до порога.
// ══════════════════════════════════════════════════════════════════════════════

// ListAchievementsQuery содержит параметры запроса.
type ListAchievementsQuery struct {
	UserID string
}

// Validate проверяет корректность параметров.
func (q *ListAchievementsQuery) Validate() error {
	id, err := shared.NormalizeID("achievement", "ListAchievements", "user_id", q.UserID)
	if err != nil {
		return err
	}
	q.UserID = id
	return nil
}

// AchievementDTO - достижение с состоянием для пользователя.
type AchievementDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      string `json:"rarity"`
	RewardXP    int64  `json:"reward_xp"`
	Points      int    `json:"points"`

	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`

	// Current и Target - значение метрики и порог (0 для особых правил).
	Current int64 `json:"current"`
	Target  int64 `json:"target"`

	// Percent - прогресс 0..100.
	Percent float64 `json:"percent"`
}

// AchievementListDTO - результат запроса.
type AchievementListDTO struct {
	Earned    []AchievementDTO `json:"earned"`
	Available []AchievementDTO `json:"available"`

	TotalPoints int `json:"total_points"`
}

// ListAchievementsHandler обрабатывает запрос.
type ListAchievementsHandler struct {
	registry     *achievement.Registry
	stats        progress.StatsRepository
	progress     progress.ProgressRepository
	achievements achievement.Repository
}

// NewListAchievementsHandler создаёт обработчик.
func NewListAchievementsHandler(
	registry *achievement.Registry,
	stats progress.StatsRepository,
	progressRepo progress.ProgressRepository,
	achievements achievement.Repository,
) *ListAchievementsHandler {
	return &ListAchievementsHandler{
		registry:     registry,
		stats:        stats,
		progress:     progressRepo,
		achievements: achievements,
	}
}

// Handle возвращает достижения в порядке ID. Полученные достижения,
// которых больше нет в реестре, не показываются.
func (h *ListAchievementsHandler) Handle(ctx context.Context, q ListAchievementsQuery) (*AchievementListDTO, error) {
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
	records, err := h.achievements.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	earnedAt := make(map[string]time.Time, len(records))
	for _, r := range records {
		earnedAt[r.AchievementID] = r.EarnedAt
	}
	snap := achievement.NewSnapshot(stats, lessons)

	out := &AchievementListDTO{
		Earned:    []AchievementDTO{},
		Available: []AchievementDTO{},
	}
	for _, d := range h.registry.Definitions() {
		dto := AchievementDTO{
			ID:          d.ID,
			Type:        string(d.Type),
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Rarity:      string(d.Rarity),
			RewardXP:    d.RewardXP,
			Points:      d.Points,
			Target:      d.Rule.Target(),
		}
		if at, ok := earnedAt[d.ID]; ok {
			dto.Earned = true
			dto.EarnedAt = &at
			dto.Current = dto.Target
			dto.Percent = 100
			out.Earned = append(out.Earned, dto)
			out.TotalPoints += d.Points
			continue
		}

		dto.Current = d.Rule.Measure(snap)
		if dto.Target > 0 {
			dto.Percent = float64(min(dto.Current, dto.Target)) / float64(dto.Target) * 100
		}
		out.Available = append(out.Available, dto)
	}
	return out, nil
}
