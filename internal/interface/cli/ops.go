package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlearn/progress-hub/config"
	"github.com/sqlearn/progress-hub/internal/app"
	"github.com/sqlearn/progress-hub/internal/domain/notification"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/sqlearn/progress-hub/internal/infrastructure/scheduler/jobs"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK SCAN
// ══════════════════════════════════════════════════════════════════════════════

// StreakScanOutput is the JSON payload of streak-scan.
type StreakScanOutput struct {
	Run           *jobs.StreakAtRiskStats       `json:"run"`
	Notifications []*notification.Notification `json:"notifications"`
}

// NewStreakScanCommand runs the streak reminder job once, outside the worker.
func NewStreakScanCommand(rootOpts *RootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "streak-scan",
		Short: "Find learners whose streak ends today and remind them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var clock timeutil.Clock
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid --at %q: want RFC3339", at))
				}
				clock = timeutil.FixedClock{T: t}
			}
			return withEngine(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if clock == nil {
					clock = s.engine.Clock
				}
				job := jobs.NewStreakAtRiskJob(
					s.engine.Storage.Stats,
					s.engine.Bus,
					clock,
					s.engine.Location,
					s.engine.Log,
					jobs.StreakAtRiskConfig{
						Concurrency: s.engine.Config.Scheduler.ReminderConcurrency,
						Timeout:     s.engine.Config.Scheduler.JobTimeout,
					},
				)
				if err := job.Run(ctx); err != nil {
					return err
				}
				out := StreakScanOutput{Run: job.LastRunStats(), Notifications: s.sent.Sent()}
				return s.out.Success(out, func(w io.Writer) {
					if out.Run != nil {
						fmt.Fprintf(w, "Day:\t%s\n", out.Run.Day)
						fmt.Fprintf(w, "Scanned:\t%d\n", out.Run.Scanned)
						fmt.Fprintf(w, "Reminded:\t%d\n", out.Run.Published)
						fmt.Fprintf(w, "Failed:\t%d\n", out.Run.Failed)
					}
					writeNotifications(w, out.Notifications)
				})
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "pretend the scan runs at this RFC3339 time")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

// MigrationStatus is one row of migrate --status.
type MigrationStatus struct {
	Version   int        `json:"version"`
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// NewMigrateCommand applies, rolls back or lists PostgreSQL migrations.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var status, rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Long: `Apply pending PostgreSQL migrations. Only the postgres driver keeps a
migration history; sqlite creates its schema on open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status && rollback {
				return NewExitError(ExitCommandError, "--status and --rollback are mutually exclusive")
			}
			cfg, log, err := rootOpts.loader(rootOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			defer log.Sync()
			if cfg.Database.Driver != config.DriverPostgres {
				return NewExitError(ExitCommandError, fmt.Sprintf("migrate requires DB_DRIVER=postgres, got %q", cfg.Database.Driver))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			dbCfg := cfg.Database
			dbCfg.AutoMigrate = false
			st, err := app.OpenStorage(ctx, dbCfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			m := postgres.NewMigrator(st.Postgres)
			switch {
			case rollback:
				if err := m.Rollback(ctx); err != nil {
					return err
				}
			case !status:
				if err := m.Migrate(ctx); err != nil {
					return err
				}
			}

			migrations, err := m.Status(ctx)
			if err != nil {
				return err
			}
			rows := migrationRows(migrations)
			return newFormatter(cmd, rootOpts).Success(rows, func(w io.Writer) {
				for _, r := range rows {
					state := "pending"
					if r.Applied {
						state = "applied " + r.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%03d\t%s\t%s\n", r.Version, r.Name, state)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "only list migrations")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last applied migration")
	return cmd
}

func migrationRows(migrations []postgres.Migration) []MigrationStatus {
	rows := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		row := MigrationStatus{Version: m.Version, Name: m.Name, Applied: m.IsApplied}
		if m.IsApplied {
			at := m.AppliedAt
			row.AppliedAt = &at
		}
		rows = append(rows, row)
	}
	return rows
}
