package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements progress.StatsRepository and
// progress.LedgerRepository for PostgreSQL.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

var (
	_ progress.StatsRepository  = (*StatsRepository)(nil)
	_ progress.LedgerRepository = (*StatsRepository)(nil)
)

const statsColumns = `
	user_id, total_xp, level, current_streak, longest_streak, last_activity_date,
	lessons_completed, practice_completed, quizzes_completed, total_time_spent,
	version, created_at, updated_at`

// GetStats returns the stats of a user.
func (r *StatsRepository) GetStats(ctx context.Context, userID string) (*progress.UserStats, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)
	stats, err := scanStats(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserStatsNotFound
		}
		return nil, shared.Persistence("progress", "GetStats", err)
	}
	return stats, nil
}

// SaveStats writes stats and ledger entries in one transaction. The write
// only happens if the stored version still equals expectedVersion.
func (r *StatsRepository) SaveStats(ctx context.Context, stats *progress.UserStats, expectedVersion int64, entries ...progress.LedgerEntry) error {
	next := expectedVersion + 1

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var (
			affected int64
			err      error
		)
		if expectedVersion == 0 {
			affected, err = r.insertStats(ctx, tx, stats, next)
		} else {
			affected, err = r.updateStats(ctx, tx, stats, expectedVersion, next)
		}
		if err != nil {
			return shared.Persistence("progress", "SaveStats", err)
		}
		if affected == 0 {
			return shared.ErrStatsVersionStale
		}

		for _, e := range entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO xp_ledger (id, user_id, amount, reason, total_xp_after, level_after, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, e.ID, e.UserID, e.Amount, string(e.Reason), e.TotalXPAfter, e.LevelAfter, e.CreatedAt)
			if err != nil {
				return shared.Persistence("progress", "SaveStats", err)
			}
		}
		return nil
	})
	if err != nil {
		if shared.IsConflict(err) || shared.IsPersistence(err) {
			return err
		}
		return shared.Persistence("progress", "SaveStats", err)
	}

	stats.Version = next
	return nil
}

func (r *StatsRepository) insertStats(ctx context.Context, q Querier, s *progress.UserStats, version int64) (int64, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO user_stats (`+statsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO NOTHING
	`,
		s.UserID, s.TotalXP, s.Level, s.CurrentStreak, s.LongestStreak, dateArg(s.LastActivityDate),
		s.LessonsCompleted, s.PracticeCompleted, s.QuizzesCompleted, s.TotalTimeSpent,
		version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *StatsRepository) updateStats(ctx context.Context, q Querier, s *progress.UserStats, expected, version int64) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE user_stats SET
			total_xp = $2,
			level = $3,
			current_streak = $4,
			longest_streak = $5,
			last_activity_date = $6,
			lessons_completed = $7,
			practice_completed = $8,
			quizzes_completed = $9,
			total_time_spent = $10,
			version = $11,
			updated_at = $12
		WHERE user_id = $1 AND version = $13
	`,
		s.UserID, s.TotalXP, s.Level, s.CurrentStreak, s.LongestStreak, dateArg(s.LastActivityDate),
		s.LessonsCompleted, s.PracticeCompleted, s.QuizzesCompleted, s.TotalTimeSpent,
		version, s.UpdatedAt, expected,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListActiveOn returns users with a live streak whose last activity was day.
func (r *StatsRepository) ListActiveOn(ctx context.Context, day timeutil.Date) ([]*progress.UserStats, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+statsColumns+`
		FROM user_stats
		WHERE current_streak > 0 AND last_activity_date = $1
		ORDER BY user_id
	`, day.StartOf(time.UTC))
	if err != nil {
		return nil, shared.Persistence("progress", "ListActiveOn", err)
	}
	defer rows.Close()

	var out []*progress.UserStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, shared.Persistence("progress", "ListActiveOn", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("progress", "ListActiveOn", err)
	}
	return out, nil
}

// ListLedger returns the newest ledger entries first. A non-positive limit
// returns the whole history.
func (r *StatsRepository) ListLedger(ctx context.Context, userID string, limit int) ([]progress.LedgerEntry, error) {
	query := `
		SELECT id, user_id, amount, reason, total_xp_after, level_after, created_at
		FROM xp_ledger
		WHERE user_id = $1
		ORDER BY seq DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Persistence("progress", "ListLedger", err)
	}
	defer rows.Close()

	out := make([]progress.LedgerEntry, 0)
	for rows.Next() {
		var (
			e      progress.LedgerEntry
			reason string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &reason, &e.TotalXPAfter, &e.LevelAfter, &e.CreatedAt); err != nil {
			return nil, shared.Persistence("progress", "ListLedger", err)
		}
		e.Reason = progress.Reason(reason)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("progress", "ListLedger", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanStats(row pgx.Row) (*progress.UserStats, error) {
	var (
		s            progress.UserStats
		lastActivity *time.Time
	)
	err := row.Scan(
		&s.UserID, &s.TotalXP, &s.Level, &s.CurrentStreak, &s.LongestStreak, &lastActivity,
		&s.LessonsCompleted, &s.PracticeCompleted, &s.QuizzesCompleted, &s.TotalTimeSpent,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastActivity != nil {
		d := timeutil.DateOf(*lastActivity, time.UTC)
		s.LastActivityDate = &d
	}
	return &s, nil
}

// dateArg maps an optional civil date to a DATE parameter.
func dateArg(d *timeutil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.StartOf(time.UTC)
	return &t
}
