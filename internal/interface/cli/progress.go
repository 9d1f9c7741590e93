package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlearn/progress-hub/internal/application/saga"
	"github.com/sqlearn/progress-hub/internal/domain/notification"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON
// ══════════════════════════════════════════════════════════════════════════════

type completeLessonFlags struct {
	status    string
	score     int
	timeSpent int64
	exercises []string
	quiz      int
	at        string
}

// CompleteLessonOutput is the JSON payload of complete-lesson.
type CompleteLessonOutput struct {
	Result        *saga.AggregateResult        `json:"result"`
	Notifications []*notification.Notification `json:"notifications"`
}

// NewCompleteLessonCommand creates the complete-lesson command.
func NewCompleteLessonCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &completeLessonFlags{}
	cmd := &cobra.Command{
		Use:   "complete-lesson <user-id> <lesson-id>",
		Short: "Record a lesson submission",
		Long: `Record one lesson submission and apply everything it earns: lesson
progress, streak, XP rewards and newly unlocked achievements.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := flags.submission()
			if err != nil {
				return err
			}
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.engine.CompleteLesson.Execute(ctx, saga.CompleteLessonInput{
					UserID:     args[0],
					LessonID:   args[1],
					Submission: sub,
				})
				if err != nil {
					return err
				}
				sent := s.sent.Sent()
				return s.out.Success(CompleteLessonOutput{Result: res, Notifications: sent}, func(w io.Writer) {
					writeAggregate(w, res)
					writeNotifications(w, sent)
				})
			})
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", string(progress.StatusCompleted), "lesson status (in_progress|completed|mastered)")
	cmd.Flags().IntVar(&flags.score, "score", 0, "lesson score 0-100")
	cmd.Flags().Int64Var(&flags.timeSpent, "time", 0, "seconds spent in this session")
	cmd.Flags().StringSliceVar(&flags.exercises, "exercise", nil, "completed exercise ids (repeatable or comma separated)")
	cmd.Flags().IntVar(&flags.quiz, "quiz", 0, "quiz score 0-100, 0 when no quiz was taken")
	cmd.Flags().StringVar(&flags.at, "at", "", "submission time, RFC3339 (default now)")

	return cmd
}

func (f *completeLessonFlags) submission() (progress.Submission, error) {
	sub := progress.Submission{
		Status:             progress.Status(f.status),
		Score:              f.score,
		TimeSpent:          f.timeSpent,
		ExercisesCompleted: f.exercises,
		QuizScore:          f.quiz,
	}
	if f.at != "" {
		at, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return sub, NewExitError(ExitCommandError, fmt.Sprintf("invalid --at %q: want RFC3339", f.at))
		}
		sub.SubmittedAt = at
	}
	return sub, nil
}

func writeAggregate(w io.Writer, res *saga.AggregateResult) {
	fmt.Fprintf(w, "Lesson:\t%s (%s)\n", res.Progress.LessonID, res.Progress.Status)
	fmt.Fprintf(w, "Attempts:\t%d\n", res.Progress.Attempts)
	fmt.Fprintf(w, "XP earned:\t+%d\n", res.XP.XPAwarded)
	for _, a := range res.Awards {
		fmt.Fprintf(w, "  %s\t+%d\n", a.Reason, a.Amount)
	}
	if res.AchievementXP > 0 {
		fmt.Fprintf(w, "Achievement XP:\t+%d\n", res.AchievementXP)
	}
	fmt.Fprintf(w, "Total XP:\t%d\n", res.Stats.TotalXP)
	level := strconv.Itoa(res.Stats.Level)
	if res.XP.LeveledUp {
		level = fmt.Sprintf("%d (up from %d)", res.XP.NewLevel, res.XP.OldLevel)
	}
	fmt.Fprintf(w, "Level:\t%s\n", level)
	fmt.Fprintf(w, "Streak:\t%d days (longest %d)\n", res.Streak.CurrentStreak, res.Streak.LongestStreak)
	for _, r := range res.NewAchievements {
		fmt.Fprintf(w, "Unlocked:\t%s (+%d XP)\n", r.AchievementID, r.RewardXP)
	}
}

func writeNotifications(w io.Writer, sent []*notification.Notification) {
	for _, n := range sent {
		fmt.Fprintf(w, "Notify:\t%s %s\n", n.Title, n.Message)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD / PENALIZE
// ══════════════════════════════════════════════════════════════════════════════

// NewAwardCommand creates the award command.
func NewAwardCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "award <user-id> <amount>",
		Short: "Add XP to a learner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.engine.XP.AwardXP(ctx, args[0], amount, progress.Reason(reason))
				if err != nil {
					return err
				}
				return s.out.Success(res, func(w io.Writer) { writeXPResult(w, res) })
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", string(progress.ReasonManual), "ledger reason")
	return cmd
}

// NewPenalizeCommand creates the penalize command.
func NewPenalizeCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "penalize <user-id> <amount>",
		Short: "Deduct XP from a learner",
		Long:  "Deduct XP from a learner. The level is recomputed and may drop; a penalty larger than the learner's total is rejected.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.engine.XP.PenalizeXP(ctx, args[0], amount, progress.Reason(reason))
				if err != nil {
					return err
				}
				return s.out.Success(res, func(w io.Writer) { writeXPResult(w, res) })
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", string(progress.ReasonHintPenalty), "ledger reason")
	return cmd
}

func parseAmount(raw string) (int64, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", raw))
	}
	return amount, nil
}

func writeXPResult(w io.Writer, res progress.XPResult) {
	fmt.Fprintf(w, "XP change:\t%+d\n", res.XPAwarded)
	fmt.Fprintf(w, "Total XP:\t%d\n", res.TotalXP)
	fmt.Fprintf(w, "Level:\t%d -> %d\n", res.OldLevel, res.NewLevel)
}

// ══════════════════════════════════════════════════════════════════════════════
// BOOKMARK / RESET
// ══════════════════════════════════════════════════════════════════════════════

// NewBookmarkCommand creates the bookmark command.
func NewBookmarkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bookmark <user-id> <lesson-id>",
		Short: "Toggle a lesson bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				rec, err := s.engine.Lessons.ToggleBookmark(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return s.out.Success(rec, func(w io.Writer) {
					fmt.Fprintf(w, "Lesson:\t%s\n", rec.LessonID)
					fmt.Fprintf(w, "Bookmarked:\t%t\n", rec.IsBookmarked)
				})
			})
		},
	}
}

// NewResetLessonCommand creates the reset-lesson command.
func NewResetLessonCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-lesson <user-id> <lesson-id>",
		Short: "Delete a learner's progress on one lesson",
		Long:  "Delete a learner's progress record for one lesson. Earned XP and achievements are kept.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.engine.Lessons.ResetLesson(ctx, args[0], args[1]); err != nil {
					return err
				}
				data := map[string]string{"user_id": args[0], "lesson_id": args[1]}
				return s.out.Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Reset:\t%s\n", args[1])
				})
			})
		},
	}
}
