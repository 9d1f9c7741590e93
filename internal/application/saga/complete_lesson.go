// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sqlearn/progress-hub/internal/application/command"
	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON SAGA
// Business process: a learner submits a lesson.
// Flow: Validate → Lock User → Check Day → Save Lesson Progress →
//
//	Streak + Rewards (one stats write) → Publish Events → Check Achievements
//
// Steps persist independently and nothing is rolled back: if the achievement
// check fails, the lesson progress and XP already written stay written.
// The whole flow holds the per-user lock, so two submissions of the same
// user never interleave.
// ══════════════════════════════════════════════════════════════════════════════

const tracerName = "github.com/sqlearn/progress-hub/saga"

// CompleteLessonInput contains data needed to process a submission.
type CompleteLessonInput struct {
	// UserID - the learner.
	UserID string

	// LessonID - the submitted lesson.
	LessonID string

	// Submission - what the learner sent.
	Submission progress.Submission
}

// Validate checks the input before anything is loaded or changed.
func (i *CompleteLessonInput) Validate() error {
	userID, err := shared.NormalizeID("progress", "CompleteLesson", "user_id", i.UserID)
	if err != nil {
		return err
	}
	lessonID, err := shared.NormalizeID("progress", "CompleteLesson", "lesson_id", i.LessonID)
	if err != nil {
		return err
	}
	if err := i.Submission.Validate(); err != nil {
		return err
	}
	i.UserID, i.LessonID = userID, lessonID
	return nil
}

// AggregateResult contains the result of one submission.
type AggregateResult struct {
	// Progress - the saved lesson record.
	Progress *progress.ProgressRecord `json:"progress"`

	// XP - combined lesson, practice, quiz and streak rewards.
	// Achievement rewards are not included; see AchievementXP.
	XP progress.XPResult `json:"xp"`

	// Awards - the individual rewards that make up XP.
	Awards []command.Award `json:"awards"`

	// Streak - the streak update for the submission day.
	Streak progress.StreakResult `json:"streak"`

	// NewAchievements - achievements unlocked by this submission.
	NewAchievements []achievement.Record `json:"new_achievements"`

	// AchievementXP - XP granted by NewAchievements.
	AchievementXP int64 `json:"achievement_xp"`

	// Stats - stats after all steps.
	Stats *progress.UserStats `json:"stats"`
}

// CompleteLessonStep represents a step in the flow.
type CompleteLessonStep string

const (
	StepValidate          CompleteLessonStep = "validate"
	StepLockUser          CompleteLessonStep = "lock_user"
	StepCheckDay          CompleteLessonStep = "check_activity_day"
	StepSaveProgress      CompleteLessonStep = "save_progress"
	StepApplyRewards      CompleteLessonStep = "apply_rewards"
	StepCheckAchievements CompleteLessonStep = "check_achievements"
	StepComplete          CompleteLessonStep = "complete"
)

// CompleteLessonState tracks the current state of the flow.
type CompleteLessonState struct {
	CurrentStep CompleteLessonStep
	Input       CompleteLessonInput
	At          time.Time
	Day         timeutil.Date
	Record      *progress.ProgressRecord
	Outcome     progress.SubmissionOutcome
	Ledger      *command.LedgerOutcome
	Streak      progress.StreakResult
	Unlocked    []achievement.Record
	StartedAt   time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonSaga is the progress aggregator: it turns one lesson
// submission into lesson progress, streak, XP and achievements.
type CompleteLessonSaga struct {
	progressRepo progress.ProgressRepository
	locker       progress.UserLocker
	updater      *command.StatsUpdater
	ledger       *command.XPLedger
	streaks      *command.StreakTracker
	checker      *command.AchievementChecker
	publisher    shared.EventPublisher
	log          *logger.Logger
	tracer       trace.Tracer

	rewards progress.Rewards
}

// CompleteLessonConfig contains configuration for the saga.
type CompleteLessonConfig struct {
	Rewards progress.Rewards

	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// DefaultCompleteLessonConfig returns default configuration.
func DefaultCompleteLessonConfig() CompleteLessonConfig {
	return CompleteLessonConfig{
		Rewards: progress.DefaultRewards(),
	}
}

// NewCompleteLessonSaga creates a new saga with all dependencies.
func NewCompleteLessonSaga(
	progressRepo progress.ProgressRepository,
	locker progress.UserLocker,
	updater *command.StatsUpdater,
	ledger *command.XPLedger,
	streaks *command.StreakTracker,
	checker *command.AchievementChecker,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config CompleteLessonConfig,
) *CompleteLessonSaga {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer(tracerName)
	}
	return &CompleteLessonSaga{
		progressRepo: progressRepo,
		locker:       locker,
		updater:      updater,
		ledger:       ledger,
		streaks:      streaks,
		checker:      checker,
		publisher:    publisher,
		log:          log.With(logger.Component("complete_lesson")),
		tracer:       config.Tracer,
		rewards:      config.Rewards,
	}
}

// Execute processes a submission.
func (s *CompleteLessonSaga) Execute(ctx context.Context, input CompleteLessonInput) (result *AggregateResult, err error) {
	state := &CompleteLessonState{
		CurrentStep: StepValidate,
		Input:       input,
		StartedAt:   s.updater.Now(),
	}

	ctx, span := s.tracer.Start(ctx, "saga.CompleteLesson")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(state.CurrentStep))
		}
		span.End()
	}()

	// Step 1: Validate input
	if err := state.Input.Validate(); err != nil {
		return nil, s.wrapError(state, err)
	}
	span.SetAttributes(
		attribute.String("user.id", state.Input.UserID),
		attribute.String("lesson.id", state.Input.LessonID),
	)
	state.At = state.Input.Submission.SubmittedAt
	if state.At.IsZero() {
		state.At = state.StartedAt
	}
	state.Day = s.streaks.Day(state.At)

	// Step 2: Serialize with other flows of this user
	state.CurrentStep = StepLockUser
	unlock, err := s.locker.Lock(ctx, state.Input.UserID)
	if err != nil {
		return nil, s.wrapError(state, err)
	}
	defer unlock()

	// Step 3: Reject backdated activity before anything is written
	state.CurrentStep = StepCheckDay
	if err := s.stepCheckDay(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Lesson progress
	state.CurrentStep = StepSaveProgress
	if err := s.stepSaveProgress(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 5: Streak, counters and XP in one stats write
	state.CurrentStep = StepApplyRewards
	if err := s.stepApplyRewards(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}
	s.publishEvents(state)

	// Step 6: Achievements against the updated state
	state.CurrentStep = StepCheckAchievements
	if err := s.stepCheckAchievements(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	state.CurrentStep = StepComplete
	result = s.buildResult(ctx, state)

	span.SetAttributes(
		attribute.Int64("xp.awarded", result.XP.XPAwarded),
		attribute.Int("achievements.unlocked", len(result.NewAchievements)),
	)
	s.log.Info("lesson submission processed",
		logger.UserID(state.Input.UserID),
		logger.LessonID(state.Input.LessonID),
		logger.XPAmount(result.XP.XPAwarded),
		logger.Int("achievements", len(result.NewAchievements)),
		logger.Latency(s.updater.Now().Sub(state.StartedAt)),
	)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepCheckDay makes sure the submission day is not before the last activity.
func (s *CompleteLessonSaga) stepCheckDay(ctx context.Context, state *CompleteLessonState) error {
	stats, err := s.updater.Load(ctx, state.Input.UserID)
	if err != nil {
		return err
	}
	return stats.CheckActivityDay(state.Day)
}

// stepSaveProgress applies the submission to the lesson record.
func (s *CompleteLessonSaga) stepSaveProgress(ctx context.Context, state *CompleteLessonState) error {
	ctx, span := s.tracer.Start(ctx, "saga.CompleteLesson.save_progress")
	defer span.End()

	rec, err := s.progressRepo.GetProgress(ctx, state.Input.UserID, state.Input.LessonID)
	switch {
	case shared.IsNotFound(err):
		rec = progress.NewProgressRecord(state.Input.UserID, state.Input.LessonID, state.At)
	case err != nil:
		return err
	}

	state.Outcome = rec.Apply(state.Input.Submission, state.At)
	if err := s.progressRepo.SaveProgress(ctx, rec); err != nil {
		return err
	}
	state.Record = rec
	return nil
}

// stepApplyRewards records the activity day and awards everything the
// submission earned. Awards are applied in a fixed order: lesson, perfect
// score, first try, practice, quiz, streak bonus.
func (s *CompleteLessonSaga) stepApplyRewards(ctx context.Context, state *CompleteLessonState) error {
	ctx, span := s.tracer.Start(ctx, "saga.CompleteLesson.apply_rewards")
	defer span.End()

	outcome := state.Outcome
	score := state.Input.Submission.Score

	out, err := s.ledger.Apply(ctx, command.LedgerUpdate{
		UserID: state.Input.UserID,
		Mutate: func(stats *progress.UserStats, _ time.Time) ([]command.Award, error) {
			streak, err := stats.RecordActivity(state.Day)
			if err != nil {
				return nil, err
			}
			state.Streak = streak

			var awards []command.Award
			add := func(amount int64, reason progress.Reason) {
				if amount > 0 {
					awards = append(awards, command.Award{Amount: amount, Reason: reason})
				}
			}

			if outcome.FirstCompletion {
				stats.RecordLessonCompleted()
				add(s.rewards.LessonComplete, progress.ReasonLessonComplete)
				if score == progress.MaxScore {
					add(s.rewards.PerfectScore, progress.ReasonPerfectScore)
				}
				if outcome.PreviousAttempts == 0 {
					add(s.rewards.FirstTry, progress.ReasonFirstTry)
				}
			}
			if n := len(outcome.NewExercises); n > 0 {
				stats.RecordPractice(n)
				add(s.rewards.PracticeComplete*int64(n), progress.ReasonPracticeComplete)
			}
			if outcome.FirstQuiz {
				stats.RecordQuizCompleted()
				add(s.rewards.QuizComplete, progress.ReasonQuizComplete)
			}
			stats.AddTimeSpent(outcome.TimeAdded)

			if streak.Extended {
				add(s.rewards.StreakBonusFor(streak.CurrentStreak), progress.ReasonStreakBonus)
			}
			return awards, nil
		},
	})
	if err != nil {
		return err
	}
	state.Ledger = out
	span.SetAttributes(attribute.Int64("xp.awarded", out.Combined.XPAwarded))
	return nil
}

// publishEvents publishes lesson and streak events. XP and level events
// are published by the ledger.
func (s *CompleteLessonSaga) publishEvents(state *CompleteLessonState) {
	events := command.StreakEvents(state.Input.UserID, state.Streak)
	if state.Outcome.FirstCompletion {
		events = append(events, shared.NewLessonCompletedEvent(
			state.Input.UserID, state.Input.LessonID, state.Record.Score, state.Record.Attempts,
		))
	}
	for _, e := range events {
		if err := s.publisher.Publish(e); err != nil {
			s.log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.UserID(state.Input.UserID),
				logger.Err(err),
			)
		}
	}
}

// stepCheckAchievements runs the rule engine on the updated snapshot.
func (s *CompleteLessonSaga) stepCheckAchievements(ctx context.Context, state *CompleteLessonState) error {
	ctx, span := s.tracer.Start(ctx, "saga.CompleteLesson.check_achievements")
	defer span.End()

	lessons, err := s.progressRepo.ListProgress(ctx, state.Input.UserID)
	if err != nil {
		return err
	}
	snap := achievement.NewSnapshot(state.Ledger.Stats, lessons)

	unlocked, err := s.checker.CheckAchievements(ctx, state.Input.UserID, snap)
	state.Unlocked = unlocked
	return err
}

// buildResult assembles the result. Stats are reloaded when achievements
// added XP after the rewards write.
func (s *CompleteLessonSaga) buildResult(ctx context.Context, state *CompleteLessonState) *AggregateResult {
	result := &AggregateResult{
		Progress:        state.Record,
		XP:              state.Ledger.Combined,
		Awards:          state.Ledger.Awards,
		Streak:          state.Streak,
		NewAchievements: state.Unlocked,
		Stats:           state.Ledger.Stats,
	}
	if result.NewAchievements == nil {
		result.NewAchievements = []achievement.Record{}
	}
	for _, rec := range state.Unlocked {
		result.AchievementXP += rec.RewardXP
	}
	if result.AchievementXP > 0 {
		if stats, err := s.updater.Load(ctx, state.Input.UserID); err == nil {
			result.Stats = stats
		}
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonError reports the step at which the flow stopped.
// Steps before it stay committed.
type CompleteLessonError struct {
	Step     CompleteLessonStep
	UserID   string
	LessonID string
	Cause    error
}

// Error implements the error interface.
func (e *CompleteLessonError) Error() string {
	return fmt.Sprintf("complete lesson failed at step '%s': %v", e.Step, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CompleteLessonError) Unwrap() error {
	return e.Cause
}

// wrapError wraps an error with saga context.
func (s *CompleteLessonSaga) wrapError(state *CompleteLessonState, err error) error {
	s.log.Warn("complete lesson failed",
		logger.UserID(state.Input.UserID),
		logger.LessonID(state.Input.LessonID),
		logger.String("step", string(state.CurrentStep)),
		logger.Err(err),
	)
	return &CompleteLessonError{
		Step:     state.CurrentStep,
		UserID:   state.Input.UserID,
		LessonID: state.Input.LessonID,
		Cause:    err,
	}
}
