// Package cli implements progressctl, the operator command line for the
// progress engine. Each command builds its own engine from the environment
// and prints the result as text or JSON.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sqlearn/progress-hub/config"
	"github.com/sqlearn/progress-hub/internal/app"
	"github.com/sqlearn/progress-hub/internal/infrastructure/service"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	loader Loader
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Loader produces configuration and a logger for a command run.
type Loader func(opts *RootOptions) (*config.Config, *logger.Logger, error)

// EnvLoader reads configuration from the process environment. Logs go to
// stderr at warn level, or debug with --verbose, so stdout stays parseable.
func EnvLoader(opts *RootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logOpts := cfg.LoggerOptions()
	logOpts.Level = logger.LevelWarn
	if opts.Verbose {
		logOpts.Level = logger.LevelDebug
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// NewRootCommand creates the root command. A nil loader means EnvLoader.
func NewRootCommand(loader Loader) *cobra.Command {
	if loader == nil {
		loader = EnvLoader
	}
	opts := &RootOptions{loader: loader}

	cmd := &cobra.Command{
		Use:   "progressctl",
		Short: "Operate the SQL course progress engine",
		Long: `progressctl records lesson submissions and inspects learner progress.

Settings come from the same environment variables as the worker
(DB_DRIVER, DB_DSN, REDIS_URL, ENGINE_REWARD_*).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCompleteLessonCommand(opts))
	cmd.AddCommand(NewAwardCommand(opts))
	cmd.AddCommand(NewPenalizeCommand(opts))
	cmd.AddCommand(NewBookmarkCommand(opts))
	cmd.AddCommand(NewResetLessonCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewAchievementsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStreakScanCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// session is one command run: an engine plus the notifications it sent.
type session struct {
	engine *app.Engine
	sent   *service.RecordingSender
	out    *OutputFormatter
}

// withEngine builds the engine, runs fn and closes the engine.
// Events are delivered synchronously so notifications are recorded
// before the command prints its result.
func withEngine(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	cfg, log, err := opts.loader(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sent := &service.RecordingSender{}
	engine, err := app.New(ctx, cfg, log, app.Options{
		SyncEvents: true,
		Sender:     sent,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "build engine", err)
	}
	defer engine.Close()

	return fn(ctx, &session{
		engine: engine,
		sent:   sent,
		out:    newFormatter(cmd, opts),
	})
}
