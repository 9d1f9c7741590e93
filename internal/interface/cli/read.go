package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlearn/progress-hub/internal/application/query"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Show a learner's level, streak and lesson totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				summary, err := s.engine.Summary.Handle(ctx, query.GetUserSummaryQuery{UserID: args[0]})
				if err != nil {
					return err
				}
				return s.out.Success(summary, func(w io.Writer) { writeSummary(w, summary) })
			})
		},
	}
}

func writeSummary(w io.Writer, s *query.UserSummaryDTO) {
	fmt.Fprintf(w, "User:\t%s\n", s.UserID)
	writeLevel(w, s.Level)
	fmt.Fprintf(w, "Streak:\t%d days (longest %d)\n", s.CurrentStreak, s.LongestStreak)
	if s.LastActivityDate != "" {
		fmt.Fprintf(w, "Last active:\t%s\n", s.LastActivityDate)
	}
	fmt.Fprintf(w, "Lessons:\t%d completed of %d started\n", s.LessonsCompleted, s.LessonsStarted)
	fmt.Fprintf(w, "Practice:\t%d\n", s.PracticeCompleted)
	fmt.Fprintf(w, "Quizzes:\t%d\n", s.QuizzesCompleted)
	fmt.Fprintf(w, "Average score:\t%.1f\n", s.AverageScore)
	fmt.Fprintf(w, "Time spent:\t%ds\n", s.TotalTimeSpent)
	fmt.Fprintf(w, "Achievements:\t%d (%d points)\n", s.AchievementsEarned, s.AchievementPoints)
	if len(s.Bookmarks) > 0 {
		fmt.Fprintf(w, "Bookmarks:\t%s\n", strings.Join(s.Bookmarks, ", "))
	}
}

func writeLevel(w io.Writer, lp progress.LevelProgress) {
	fmt.Fprintf(w, "Level:\t%d\n", lp.Level)
	fmt.Fprintf(w, "XP:\t%d (%d/%d in level, %.0f%%)\n", lp.CurrentXP, lp.XPInCurrentLevel, lp.XPNeededForLevel, lp.Percent)
	fmt.Fprintf(w, "Next level at:\t%d XP (%d to go)\n", lp.NextLevelXP, lp.XPToNextLevel)
}

// NewAchievementsCommand creates the achievements command.
func NewAchievementsCommand(rootOpts *RootOptions) *cobra.Command {
	var earnedOnly bool
	cmd := &cobra.Command{
		Use:   "achievements <user-id>",
		Short: "List earned and available achievements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				list, err := s.engine.ListAchievements.Handle(ctx, query.ListAchievementsQuery{UserID: args[0]})
				if err != nil {
					return err
				}
				if earnedOnly {
					list.Available = nil
				}
				return s.out.Success(list, func(w io.Writer) {
					fmt.Fprintf(w, "Points:\t%d\n", list.TotalPoints)
					for _, a := range list.Earned {
						fmt.Fprintf(w, "[x] %s\t%s\t%s\n", a.ID, a.Title, a.Rarity)
					}
					for _, a := range list.Available {
						fmt.Fprintf(w, "[ ] %s\t%s\t%d/%d (%.0f%%)\n", a.ID, a.Title, a.Current, a.Target, a.Percent)
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&earnedOnly, "earned", false, "show only earned achievements")
	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show recent XP ledger entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				entries, err := s.engine.History.Handle(ctx, query.GetXPHistoryQuery{UserID: args[0], Limit: limit})
				if err != nil {
					return err
				}
				return s.out.Success(entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No XP movements yet.")
						return
					}
					for _, e := range entries {
						fmt.Fprintf(w, "%s\t%+d\t%s\ttotal %d\tlevel %d\n",
							e.CreatedAt.Format("2006-01-02 15:04"), e.Amount, e.Reason, e.TotalXPAfter, e.LevelAfter)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries (max 200)")
	return cmd
}
