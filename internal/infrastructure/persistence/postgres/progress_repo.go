package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

var _ progress.ProgressRepository = (*ProgressRepository)(nil)

const progressColumns = `
	user_id, lesson_id, status, score, max_score, time_spent, attempts,
	exercises_completed, quiz_score, is_bookmarked, first_completed_at,
	last_accessed_at, created_at, updated_at`

// GetProgress returns the progress of one lesson.
func (r *ProgressRepository) GetProgress(ctx context.Context, userID, lessonID string) (*progress.ProgressRecord, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+progressColumns+`
		FROM lesson_progress
		WHERE user_id = $1 AND lesson_id = $2
	`, userID, lessonID)

	rec, err := scanProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, shared.Persistence("progress", "GetProgress", err)
	}
	return rec, nil
}

// SaveProgress upserts a lesson record.
func (r *ProgressRepository) SaveProgress(ctx context.Context, rec *progress.ProgressRecord) error {
	exercises := rec.ExercisesCompleted
	if exercises == nil {
		exercises = []string{}
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO lesson_progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			max_score = EXCLUDED.max_score,
			time_spent = EXCLUDED.time_spent,
			attempts = EXCLUDED.attempts,
			exercises_completed = EXCLUDED.exercises_completed,
			quiz_score = EXCLUDED.quiz_score,
			is_bookmarked = EXCLUDED.is_bookmarked,
			first_completed_at = EXCLUDED.first_completed_at,
			last_accessed_at = EXCLUDED.last_accessed_at,
			updated_at = EXCLUDED.updated_at
	`,
		rec.UserID, rec.LessonID, string(rec.Status), rec.Score, rec.MaxScore, rec.TimeSpent, rec.Attempts,
		exercises, rec.QuizScore, rec.IsBookmarked, rec.FirstCompletedAt,
		rec.LastAccessedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return shared.Persistence("progress", "SaveProgress", err)
	}
	return nil
}

// ListProgress returns every lesson of a user ordered by lesson id.
func (r *ProgressRepository) ListProgress(ctx context.Context, userID string) ([]*progress.ProgressRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+progressColumns+`
		FROM lesson_progress
		WHERE user_id = $1
		ORDER BY lesson_id
	`, userID)
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

// DeleteProgress removes a lesson record. Missing rows are not an error.
func (r *ProgressRepository) DeleteProgress(ctx context.Context, userID, lessonID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2`, userID, lessonID)
	if err != nil {
		return shared.Persistence("progress", "DeleteProgress", err)
	}
	return nil
}

func scanProgress(row pgx.Row) (*progress.ProgressRecord, error) {
	var (
		p      progress.ProgressRecord
		status string
	)
	err := row.Scan(
		&p.UserID, &p.LessonID, &status, &p.Score, &p.MaxScore, &p.TimeSpent, &p.Attempts,
		&p.ExercisesCompleted, &p.QuizScore, &p.IsBookmarked, &p.FirstCompletedAt,
		&p.LastAccessedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = progress.Status(status)
	if p.ExercisesCompleted == nil {
		p.ExercisesCompleted = []string{}
	}
	return &p, nil
}
