package command

import (
	"context"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON COMMANDS
// Bookmark toggling and lesson reset. Both touch only the lesson record;
// XP, counters and achievements are never taken back.
// ══════════════════════════════════════════════════════════════════════════════

// LessonCommands handles per-lesson commands that do not award XP.
type LessonCommands struct {
	progress progress.ProgressRepository
	locker   progress.UserLocker
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewLessonCommands creates a new LessonCommands.
func NewLessonCommands(
	progressRepo progress.ProgressRepository,
	locker progress.UserLocker,
	clock timeutil.Clock,
	log *logger.Logger,
) *LessonCommands {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LessonCommands{
		progress: progressRepo,
		locker:   locker,
		clock:    clock,
		log:      log.With(logger.Component("lesson_commands")),
	}
}

// ToggleBookmark flips the bookmark flag, creating the lesson record if
// the user has never opened the lesson. It returns the saved record.
func (h *LessonCommands) ToggleBookmark(ctx context.Context, userID, lessonID string) (*progress.ProgressRecord, error) {
	userID, lessonID, err := normalizeLessonKey("ToggleBookmark", userID, lessonID)
	if err != nil {
		return nil, err
	}

	unlock, err := h.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := h.clock.Now().UTC()
	rec, err := h.progress.GetProgress(ctx, userID, lessonID)
	switch {
	case shared.IsNotFound(err):
		rec = progress.NewProgressRecord(userID, lessonID, now)
	case err != nil:
		return nil, err
	}

	bookmarked := rec.ToggleBookmark(now)
	if err := h.progress.SaveProgress(ctx, rec); err != nil {
		return nil, err
	}

	h.log.Debug("bookmark toggled",
		logger.UserID(userID),
		logger.LessonID(lessonID),
		logger.Bool("bookmarked", bookmarked),
	)
	return rec, nil
}

// ResetLesson deletes the lesson record so the lesson can be taken again.
// Resetting a lesson that has no record is not an error.
func (h *LessonCommands) ResetLesson(ctx context.Context, userID, lessonID string) error {
	userID, lessonID, err := normalizeLessonKey("ResetLesson", userID, lessonID)
	if err != nil {
		return err
	}

	unlock, err := h.locker.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := h.progress.DeleteProgress(ctx, userID, lessonID); err != nil {
		return err
	}
	h.log.Info("lesson reset", logger.UserID(userID), logger.LessonID(lessonID))
	return nil
}

func normalizeLessonKey(op, userID, lessonID string) (string, string, error) {
	u, err := shared.NormalizeID("progress", op, "user_id", userID)
	if err != nil {
		return "", "", err
	}
	l, err := shared.NormalizeID("progress", op, "lesson_id", lessonID)
	if err != nil {
		return "", "", err
	}
	return u, l, nil
}
