// Package sqlite provides a SQLite-backed implementation of the storage
// ports for single-node deployments and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// Store persists stats, ledger, lesson progress and achievements in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ progress.StatsRepository    = (*Store)(nil)
	_ progress.LedgerRepository   = (*Store)(nil)
	_ progress.ProgressRepository = (*Store)(nil)
	_ achievement.Repository      = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; CAS conflicts surface as version mismatches
	// instead of SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Ping verifies the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS user_stats (
  user_id TEXT PRIMARY KEY,
  total_xp INTEGER NOT NULL CHECK (total_xp >= 0),
  level INTEGER NOT NULL,
  current_streak INTEGER NOT NULL,
  longest_streak INTEGER NOT NULL,
  last_activity_date TEXT,
  lessons_completed INTEGER NOT NULL,
  practice_completed INTEGER NOT NULL,
  quizzes_completed INTEGER NOT NULL,
  total_time_spent INTEGER NOT NULL,
  version INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_stats_last_activity ON user_stats(last_activity_date);

CREATE TABLE IF NOT EXISTS xp_ledger (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  reason TEXT NOT NULL,
  total_xp_after INTEGER NOT NULL,
  level_after INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_xp_ledger_user ON xp_ledger(user_id, seq);

CREATE TABLE IF NOT EXISTS lesson_progress (
  user_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  status TEXT NOT NULL,
  score INTEGER NOT NULL,
  max_score INTEGER NOT NULL,
  time_spent INTEGER NOT NULL,
  attempts INTEGER NOT NULL,
  exercises_completed TEXT NOT NULL,
  quiz_score INTEGER NOT NULL,
  is_bookmarked INTEGER NOT NULL,
  first_completed_at INTEGER,
  last_accessed_at INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS user_achievements (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  achievement_id TEXT NOT NULL,
  earned_at INTEGER NOT NULL,
  reward_xp INTEGER NOT NULL,
  points INTEGER NOT NULL,
  rarity TEXT NOT NULL,
  UNIQUE (user_id, achievement_id)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

const statsColumns = `user_id, total_xp, level, current_streak, longest_streak, last_activity_date,
  lessons_completed, practice_completed, quizzes_completed, total_time_spent, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetStats implements progress.StatsRepository.
func (s *Store) GetStats(ctx context.Context, userID string) (*progress.UserStats, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = ?`, userID)
	stats, err := scanStats(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrUserStatsNotFound
		}
		return nil, shared.Persistence("progress", "GetStats", err)
	}
	return stats, nil
}

// SaveStats implements progress.StatsRepository.
func (s *Store) SaveStats(ctx context.Context, stats *progress.UserStats, expectedVersion int64, entries ...progress.LedgerEntry) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return shared.Persistence("progress", "SaveStats", err)
	}
	defer func() { _ = tx.Rollback() }()

	next := expectedVersion + 1
	var lastActivity any
	if stats.LastActivityDate != nil {
		lastActivity = stats.LastActivityDate.String()
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = tx.ExecContext(ctx, `INSERT INTO user_stats (`+statsColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id) DO NOTHING`,
			stats.UserID, stats.TotalXP, stats.Level, stats.CurrentStreak, stats.LongestStreak, lastActivity,
			stats.LessonsCompleted, stats.PracticeCompleted, stats.QuizzesCompleted, stats.TotalTimeSpent,
			next, toMillis(stats.CreatedAt), toMillis(stats.UpdatedAt))
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE user_stats SET
			total_xp = ?, level = ?, current_streak = ?, longest_streak = ?, last_activity_date = ?,
			lessons_completed = ?, practice_completed = ?, quizzes_completed = ?, total_time_spent = ?,
			version = ?, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			stats.TotalXP, stats.Level, stats.CurrentStreak, stats.LongestStreak, lastActivity,
			stats.LessonsCompleted, stats.PracticeCompleted, stats.QuizzesCompleted, stats.TotalTimeSpent,
			next, toMillis(stats.UpdatedAt), stats.UserID, expectedVersion)
	}
	if err != nil {
		return shared.Persistence("progress", "SaveStats", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return shared.Persistence("progress", "SaveStats", err)
	}
	if affected == 0 {
		return shared.ErrStatsVersionStale
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `INSERT INTO xp_ledger (id, user_id, amount, reason, total_xp_after, level_after, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.UserID, e.Amount, string(e.Reason), e.TotalXPAfter, e.LevelAfter, toMillis(e.CreatedAt))
		if err != nil {
			return shared.Persistence("progress", "SaveStats", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return shared.Persistence("progress", "SaveStats", err)
	}
	stats.Version = next
	return nil
}

// ListActiveOn implements progress.StatsRepository.
func (s *Store) ListActiveOn(ctx context.Context, day timeutil.Date) ([]*progress.UserStats, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+statsColumns+` FROM user_stats
		WHERE current_streak > 0 AND last_activity_date = ?
		ORDER BY user_id`, day.String())
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

// ListLedger implements progress.LedgerRepository.
func (s *Store) ListLedger(ctx context.Context, userID string, limit int) ([]progress.LedgerEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, user_id, amount, reason, total_xp_after, level_after, created_at
		FROM xp_ledger WHERE user_id = ? ORDER BY seq DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, shared.Persistence("progress", "ListLedger", err)
	}
	defer rows.Close()

	out := make([]progress.LedgerEntry, 0)
	for rows.Next() {
		var (
			e         progress.LedgerEntry
			reason    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &reason, &e.TotalXPAfter, &e.LevelAfter, &createdAt); err != nil {
			return nil, shared.Persistence("progress", "ListLedger", err)
		}
		e.Reason = progress.Reason(reason)
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("progress", "ListLedger", err)
	}
	return out, nil
}

func scanStats(row rowScanner) (*progress.UserStats, error) {
	var (
		st                   progress.UserStats
		lastActivity         sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&st.UserID, &st.TotalXP, &st.Level, &st.CurrentStreak, &st.LongestStreak, &lastActivity,
		&st.LessonsCompleted, &st.PracticeCompleted, &st.QuizzesCompleted, &st.TotalTimeSpent,
		&st.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		d, err := timeutil.ParseDate(lastActivity.String)
		if err != nil {
			return nil, err
		}
		st.LastActivityDate = &d
	}
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return &st, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const progressColumns = `user_id, lesson_id, status, score, max_score, time_spent, attempts,
  exercises_completed, quiz_score, is_bookmarked, first_completed_at, last_accessed_at, created_at, updated_at`

// GetProgress implements progress.ProgressRepository.
func (s *Store) GetProgress(ctx context.Context, userID, lessonID string) (*progress.ProgressRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM lesson_progress
		WHERE user_id = ? AND lesson_id = ?`, userID, lessonID)
	rec, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, shared.Persistence("progress", "GetProgress", err)
	}
	return rec, nil
}

// SaveProgress implements progress.ProgressRepository.
func (s *Store) SaveProgress(ctx context.Context, rec *progress.ProgressRecord) error {
	exercises := rec.ExercisesCompleted
	if exercises == nil {
		exercises = []string{}
	}
	exercisesJSON, err := json.Marshal(exercises)
	if err != nil {
		return shared.Persistence("progress", "SaveProgress", err)
	}
	var firstCompleted any
	if rec.FirstCompletedAt != nil {
		firstCompleted = toMillis(*rec.FirstCompletedAt)
	}

	_, err = s.sqlDB.ExecContext(ctx, `INSERT INTO lesson_progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
		  status = excluded.status,
		  score = excluded.score,
		  max_score = excluded.max_score,
		  time_spent = excluded.time_spent,
		  attempts = excluded.attempts,
		  exercises_completed = excluded.exercises_completed,
		  quiz_score = excluded.quiz_score,
		  is_bookmarked = excluded.is_bookmarked,
		  first_completed_at = excluded.first_completed_at,
		  last_accessed_at = excluded.last_accessed_at,
		  updated_at = excluded.updated_at`,
		rec.UserID, rec.LessonID, string(rec.Status), rec.Score, rec.MaxScore, rec.TimeSpent, rec.Attempts,
		string(exercisesJSON), rec.QuizScore, rec.IsBookmarked, firstCompleted,
		toMillis(rec.LastAccessedAt), toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt))
	if err != nil {
		return shared.Persistence("progress", "SaveProgress", err)
	}
	return nil
}

// ListProgress implements progress.ProgressRepository.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*progress.ProgressRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+progressColumns+` FROM lesson_progress
		WHERE user_id = ? ORDER BY lesson_id`, userID)
	if err != nil {
		return nil, shared.Persistence("progress", "ListProgress", err)
	}
	defer rows.Close()

	var out []*progress.ProgressRecord
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, shared.Persistence("progress", "ListProgress", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("progress", "ListProgress", err)
	}
	return out, nil
}

// DeleteProgress implements progress.ProgressRepository.
func (s *Store) DeleteProgress(ctx context.Context, userID, lessonID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM lesson_progress WHERE user_id = ? AND lesson_id = ?`, userID, lessonID); err != nil {
		return shared.Persistence("progress", "DeleteProgress", err)
	}
	return nil
}

func scanProgress(row rowScanner) (*progress.ProgressRecord, error) {
	var (
		p                                  progress.ProgressRecord
		status, exercises                  string
		firstCompleted                     sql.NullInt64
		lastAccessed, createdAt, updatedAt int64
	)
	err := row.Scan(&p.UserID, &p.LessonID, &status, &p.Score, &p.MaxScore, &p.TimeSpent, &p.Attempts,
		&exercises, &p.QuizScore, &p.IsBookmarked, &firstCompleted, &lastAccessed, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = progress.Status(status)
	if err := json.Unmarshal([]byte(exercises), &p.ExercisesCompleted); err != nil {
		return nil, fmt.Errorf("decode exercises: %w", err)
	}
	if p.ExercisesCompleted == nil {
		p.ExercisesCompleted = []string{}
	}
	if firstCompleted.Valid {
		t := fromMillis(firstCompleted.Int64)
		p.FirstCompletedAt = &t
	}
	p.LastAccessedAt = fromMillis(lastAccessed)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// InsertIfAbsent implements achievement.Repository.
func (s *Store) InsertIfAbsent(ctx context.Context, rec achievement.Record) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `INSERT INTO user_achievements
		(user_id, achievement_id, earned_at, reward_xp, points, rarity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		rec.UserID, rec.AchievementID, toMillis(rec.EarnedAt), rec.RewardXP, rec.Points, string(rec.Rarity))
	if err != nil {
		return false, shared.Persistence("achievement", "InsertIfAbsent", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, shared.Persistence("achievement", "InsertIfAbsent", err)
	}
	return affected == 1, nil
}

// ListByUser implements achievement.Repository.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]achievement.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT user_id, achievement_id, earned_at, reward_xp, points, rarity
		FROM user_achievements WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, shared.Persistence("achievement", "ListByUser", err)
	}
	defer rows.Close()

	var out []achievement.Record
	for rows.Next() {
		var (
			rec      achievement.Record
			earnedAt int64
			rarity   string
		)
		if err := rows.Scan(&rec.UserID, &rec.AchievementID, &earnedAt, &rec.RewardXP, &rec.Points, &rarity); err != nil {
			return nil, shared.Persistence("achievement", "ListByUser", err)
		}
		rec.EarnedAt = fromMillis(earnedAt)
		rec.Rarity = achievement.Rarity(rarity)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("achievement", "ListByUser", err)
	}
	return out, nil
}
