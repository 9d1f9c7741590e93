package progress

import (
	"sort"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус прохождения урока.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusMastered   Status = "mastered"
)

// rank задаёт порядок статусов: статус урока не откатывается назад.
func (s Status) rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	case StatusMastered:
		return 3
	default:
		return -1
	}
}

// IsValid проверяет, что статус известен.
func (s Status) IsValid() bool {
	return s.rank() >= 0
}

// IsCompleted - урок пройден (completed или mastered).
func (s Status) IsCompleted() bool {
	return s == StatusCompleted || s == StatusMastered
}

// MaxScore - максимальный балл за урок.
const MaxScore = 100

// ProgressRecord - прогресс пользователя по одному уроку.
type ProgressRecord struct {
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
	Status   Status `json:"status"`

	// Score - последний результат, 0..100.
	Score int `json:"score"`

	// MaxScore - лучший результат за все попытки.
	MaxScore int `json:"max_score"`

	// TimeSpent - накопленное время в уроке, секунды.
	TimeSpent int64 `json:"time_spent"`

	// Attempts - число отправок.
	Attempts int `json:"attempts"`

	// ExercisesCompleted - отсортированное множество ID упражнений.
	ExercisesCompleted []string `json:"exercises_completed"`

	// QuizScore - результат квиза (0 - квиз не сдан).
	QuizScore int `json:"quiz_score"`

	IsBookmarked bool `json:"is_bookmarked"`

	// FirstCompletedAt - момент первого прохождения, устанавливается один раз.
	FirstCompletedAt *time.Time `json:"first_completed_at,omitempty"`

	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewProgressRecord создаёт пустой прогресс по уроку.
func NewProgressRecord(userID, lessonID string, now time.Time) *ProgressRecord {
	return &ProgressRecord{
		UserID:             userID,
		LessonID:           lessonID,
		Status:             StatusNotStarted,
		ExercisesCompleted: []string{},
		LastAccessedAt:     now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone возвращает глубокую копию.
func (p *ProgressRecord) Clone() *ProgressRecord {
	c := *p
	c.ExercisesCompleted = append([]string(nil), p.ExercisesCompleted...)
	if p.FirstCompletedAt != nil {
		t := *p.FirstCompletedAt
		c.FirstCompletedAt = &t
	}
	return &c
}

// HasExercise проверяет, решено ли упражнение.
func (p *ProgressRecord) HasExercise(id string) bool {
	i := sort.SearchStrings(p.ExercisesCompleted, id)
	return i < len(p.ExercisesCompleted) && p.ExercisesCompleted[i] == id
}

// ToggleBookmark переключает закладку и возвращает новое значение.
func (p *ProgressRecord) ToggleBookmark(now time.Time) bool {
	p.IsBookmarked = !p.IsBookmarked
	p.LastAccessedAt = now
	p.UpdatedAt = now
	return p.IsBookmarked
}

// Submission - данные одной отправки урока.
type Submission struct {
	// Status - статус после отправки. Пустой означает in_progress.
	Status Status `json:"status"`

	// Score - результат 0..100.
	Score int `json:"score"`

	// TimeSpent - время этой сессии, секунды.
	TimeSpent int64 `json:"time_spent"`

	// ExercisesCompleted - упражнения, решённые в этой отправке.
	ExercisesCompleted []string `json:"exercises_completed"`

	// QuizScore - результат квиза, 0 если квиза не было.
	QuizScore int `json:"quiz_score"`

	// SubmittedAt - момент отправки; нулевое значение означает "сейчас".
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate проверяет отправку до любых изменений.
func (s Submission) Validate() error {
	if s.Status != "" && !s.Status.IsValid() {
		return shared.Invalid("progress", "Submission.Validate", "unknown status %q", s.Status)
	}
	if s.Score < 0 || s.Score > MaxScore {
		return shared.Invalid("progress", "Submission.Validate", "score %d out of range 0..%d", s.Score, MaxScore)
	}
	if s.QuizScore < 0 || s.QuizScore > MaxScore {
		return shared.Invalid("progress", "Submission.Validate", "quiz score %d out of range 0..%d", s.QuizScore, MaxScore)
	}
	if s.TimeSpent < 0 {
		return shared.Invalid("progress", "Submission.Validate", "time spent cannot be negative")
	}
	for _, id := range s.ExercisesCompleted {
		if id == "" {
			return shared.Invalid("progress", "Submission.Validate", "empty exercise id")
		}
	}
	return nil
}

// SubmissionOutcome - что изменилось в прогрессе после отправки.
type SubmissionOutcome struct {
	// PreviousAttempts - число попыток до этой отправки.
	PreviousAttempts int

	// FirstCompletion - урок пройден впервые.
	FirstCompletion bool

	// NewExercises - упражнения, которых раньше не было.
	NewExercises []string

	// FirstQuiz - квиз по уроку сдан впервые.
	FirstQuiz bool

	// TimeAdded - добавленное время, секунды.
	TimeAdded int64
}

// Apply применяет отправку к прогрессу. Вызывающий должен предварительно
// проверить отправку через Validate.
func (p *ProgressRecord) Apply(sub Submission, now time.Time) SubmissionOutcome {
	out := SubmissionOutcome{PreviousAttempts: p.Attempts}

	status := sub.Status
	if status == "" {
		status = StatusInProgress
	}
	if status.rank() > p.Status.rank() {
		p.Status = status
	}

	p.Score = sub.Score
	if sub.Score > p.MaxScore {
		p.MaxScore = sub.Score
	}
	p.TimeSpent += sub.TimeSpent
	out.TimeAdded = sub.TimeSpent
	p.Attempts++

	out.NewExercises = p.mergeExercises(sub.ExercisesCompleted)

	if sub.QuizScore > 0 {
		out.FirstQuiz = p.QuizScore == 0
		if sub.QuizScore > p.QuizScore {
			p.QuizScore = sub.QuizScore
		}
	}

	if p.Status.IsCompleted() && p.FirstCompletedAt == nil {
		t := now
		p.FirstCompletedAt = &t
		out.FirstCompletion = true
	}

	p.LastAccessedAt = now
	p.UpdatedAt = now
	return out
}

// mergeExercises объединяет множества и возвращает новые ID в порядке сортировки.
func (p *ProgressRecord) mergeExercises(ids []string) []string {
	var added []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || p.HasExercise(id) {
			continue
		}
		seen[id] = struct{}{}
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil
	}
	sort.Strings(added)
	p.ExercisesCompleted = append(p.ExercisesCompleted, added...)
	sort.Strings(p.ExercisesCompleted)
	return added
}
