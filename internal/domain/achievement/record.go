package achievement

import (
	"context"
	"time"
)

// Record - полученное достижение. Создаётся один раз и не изменяется.
type Record struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
	RewardXP      int64     `json:"reward_xp"`
	Points        int       `json:"points"`
	Rarity        Rarity    `json:"rarity"`
}

// NewRecord создаёт запись о получении достижения.
func NewRecord(userID string, def Definition, now time.Time) Record {
	return Record{
		UserID:        userID,
		AchievementID: def.ID,
		EarnedAt:      now,
		RewardXP:      def.RewardXP,
		Points:        def.Points,
		Rarity:        def.Rarity,
	}
}

// Repository - хранилище полученных достижений.
type Repository interface {
	// InsertIfAbsent атомарно вставляет запись. Возвращает false, если
	// достижение уже получено (в том числе параллельным вызовом).
	InsertIfAbsent(ctx context.Context, rec Record) (inserted bool, err error)

	// ListByUser возвращает достижения пользователя по порядку получения.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

// EarnedSet строит множество полученных ID.
func EarnedSet(records []Record) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		set[r.AchievementID] = struct{}{}
	}
	return set
}
