package postgres

import (
	"context"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

var _ achievement.Repository = (*AchievementRepository)(nil)

// InsertIfAbsent grants an achievement once. The primary key makes
// concurrent grants of the same achievement collapse into one row.
func (r *AchievementRepository) InsertIfAbsent(ctx context.Context, rec achievement.Record) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at, reward_xp, points, rarity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, rec.UserID, rec.AchievementID, rec.EarnedAt, rec.RewardXP, rec.Points, string(rec.Rarity))
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, shared.Persistence("achievement", "InsertIfAbsent", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns achievements in the order they were earned.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]achievement.Record, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, achievement_id, earned_at, reward_xp, points, rarity
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, shared.Persistence("achievement", "ListByUser", err)
	}
	defer rows.Close()

	var out []achievement.Record
	for rows.Next() {
		var (
			rec    achievement.Record
			rarity string
		)
		if err := rows.Scan(&rec.UserID, &rec.AchievementID, &rec.EarnedAt, &rec.RewardXP, &rec.Points, &rarity); err != nil {
			return nil, shared.Persistence("achievement", "ListByUser", err)
		}
		rec.Rarity = achievement.Rarity(rarity)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("achievement", "ListByUser", err)
	}
	return out, nil
}
