// Package app wires the progress engine from configuration: storage,
// per-user lock, event bus, application commands and queries. Both
// binaries build an Engine and only differ in what they run on top of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sqlearn/progress-hub/config"
	"github.com/sqlearn/progress-hub/internal/application/command"
	"github.com/sqlearn/progress-hub/internal/application/eventhandler"
	"github.com/sqlearn/progress-hub/internal/application/query"
	"github.com/sqlearn/progress-hub/internal/application/saga"
	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/notification"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/internal/infrastructure/messaging"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/redis"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/sqlite"
	"github.com/sqlearn/progress-hub/internal/infrastructure/service"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// EventBus is the bus the engine publishes on.
type EventBus interface {
	shared.EventBus
	Metrics() *messaging.EventBusMetrics
	Close() error
}

// Options tune wiring for a particular binary.
type Options struct {
	// Clock defaults to the system clock.
	Clock timeutil.Clock

	// SyncEvents delivers events on the publishing goroutine. The CLI uses
	// it so notifications are handled before the process exits.
	SyncEvents bool

	// Sender receives notifications. Defaults to a LogSender.
	Sender notification.Sender

	// QuietHours suppresses non-urgent notifications at night.
	QuietHours bool
}

// Storage groups the storage ports of one backend.
type Storage struct {
	Stats        progress.StatsRepository
	Ledger       progress.LedgerRepository
	Progress     progress.ProgressRepository
	Achievements achievement.Repository

	// Ping checks the backend. Nil for the in-memory store.
	Ping func(ctx context.Context) error

	// Postgres is set for the postgres driver so callers can run migrations.
	Postgres *postgres.Connection

	close func() error
}

// Engine holds every wired component.
type Engine struct {
	Config   *config.Config
	Log      *logger.Logger
	Clock    timeutil.Clock
	Location *time.Location
	Storage  Storage
	Locker   progress.UserLocker
	Bus      EventBus
	Registry *achievement.Registry
	Redis    *goredis.Client

	Updater        *command.StatsUpdater
	XP             *command.XPLedger
	Streaks        *command.StreakTracker
	Achievements   *command.AchievementChecker
	Lessons        *command.LessonCommands
	CompleteLesson *saga.CompleteLessonSaga
	Forwarder      *eventhandler.NotificationForwarder

	LevelProgress    *query.GetLevelProgressHandler
	Summary          *query.GetUserSummaryHandler
	History          *query.GetXPHistoryHandler
	ListAchievements *query.ListAchievementsHandler

	closers []func() error
}

// New builds an Engine. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (_ *Engine, err error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	loc := cfg.App.Location
	if loc == nil {
		loc = time.UTC
	}

	e := &Engine{
		Config:   cfg,
		Log:      log,
		Clock:    opts.Clock,
		Location: loc,
	}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	e.Storage, err = OpenStorage(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, e.Storage.Close)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS, LOCK AND EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	localBus := messaging.DefaultInMemoryEventBusConfig()
	localBus.AsyncMode = !opts.SyncEvents
	localBus.Logger = log

	if cfg.Redis.Enabled() {
		redisCfg := redis.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		e.Redis, err = redis.NewClient(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.closers = append(e.closers, e.Redis.Close)

		lockCfg := redis.DefaultLockerConfig()
		lockCfg.TTL = cfg.Redis.LockTTL
		lockCfg.Logger = log
		e.Locker = redis.NewLocker(e.Redis, lockCfg)

		var bus *messaging.RedisEventBus
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSub(e.Redis),
			ChannelName:    cfg.Redis.EventChannel,
			LocalBusConfig: localBus,
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("start redis event bus: %w", err)
		}
		e.Bus = bus
		log.Info("redis lock and event bus enabled", logger.String("channel", cfg.Redis.EventChannel))
	} else {
		e.Locker = memory.NewLocker()
		e.Bus = messaging.NewInMemoryEventBus(localBus)
	}
	// The bus closes before storage so in-flight handlers can still read.
	e.closers = append(e.closers, e.Bus.Close)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ACHIEVEMENT CATALOGUE
	// ─────────────────────────────────────────────────────────────────────────
	if path := cfg.Engine.AchievementsFile; path != "" {
		e.Registry, err = achievement.LoadRegistryFile(path)
		if err != nil {
			return nil, fmt.Errorf("load achievements: %w", err)
		}
	} else {
		e.Registry = achievement.DefaultRegistry()
	}
	log.Info("achievement catalogue loaded", logger.Int("definitions", e.Registry.Len()))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION LAYER (Commands, Queries, Saga)
	// ─────────────────────────────────────────────────────────────────────────
	st := e.Storage
	e.Updater = command.NewStatsUpdater(st.Stats, command.StatsUpdaterConfig{
		MaxAttempts: cfg.Engine.CASAttempts,
		Clock:       opts.Clock,
	})
	e.XP = command.NewXPLedger(e.Updater, e.Bus, log, command.XPLedgerConfig{})
	e.Streaks = command.NewStreakTracker(e.Updater, loc, e.Bus, log)
	e.Achievements = command.NewAchievementChecker(e.Registry, st.Achievements, st.Progress, e.Updater, e.XP, e.Bus, log)
	e.Lessons = command.NewLessonCommands(st.Progress, e.Locker, opts.Clock, log)

	sagaCfg := saga.DefaultCompleteLessonConfig()
	sagaCfg.Rewards = cfg.Engine.Rewards.Table()
	e.CompleteLesson = saga.NewCompleteLessonSaga(
		st.Progress, e.Locker, e.Updater, e.XP, e.Streaks, e.Achievements, e.Bus, log, sagaCfg,
	)

	e.LevelProgress = query.NewGetLevelProgressHandler(st.Stats)
	e.Summary = query.NewGetUserSummaryHandler(st.Stats, st.Progress, st.Achievements)
	e.History = query.NewGetXPHistoryHandler(st.Ledger)
	e.ListAchievements = query.NewListAchievementsHandler(e.Registry, st.Stats, st.Progress, st.Achievements)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	sender := opts.Sender
	if sender == nil {
		sender = service.NewLogSender(log)
	}
	fwdCfg := eventhandler.DefaultForwarderConfig()
	fwdCfg.QuietHoursEnabled = opts.QuietHours
	fwdCfg.Location = loc
	fwdCfg.Clock = opts.Clock
	e.Forwarder = eventhandler.NewNotificationForwarder(sender, nil, command.UUIDGenerator{}, log, fwdCfg)
	if err = e.Forwarder.Subscribe(e.Bus); err != nil {
		return nil, fmt.Errorf("subscribe notification forwarder: %w", err)
	}

	return e, nil
}

// OpenStorage opens the configured storage backend.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		log.Warn("using in-memory storage, data is lost on exit")
		return Storage{
			Stats:        store,
			Ledger:       store,
			Progress:     store,
			Achievements: store,
			close:        func() error { return nil },
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return Storage{}, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("sqlite storage opened", logger.String("path", cfg.DSN))
		return Storage{
			Stats:        store,
			Ledger:       store,
			Progress:     store,
			Achievements: store,
			Ping:         store.Ping,
			close:        store.Close,
		}, nil

	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.DSN
		pgCfg.MaxConns = cfg.MaxConns
		pgCfg.MinConns = cfg.MinConns
		pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return Storage{}, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return Storage{}, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		stats := postgres.NewStatsRepository(conn)
		log.Info("postgres storage connected")
		return Storage{
			Stats:        stats,
			Ledger:       stats,
			Progress:     postgres.NewProgressRepository(conn),
			Achievements: postgres.NewAchievementRepository(conn),
			Ping:         conn.Ping,
			Postgres:     conn,
			close: func() error {
				conn.Close()
				return nil
			},
		}, nil

	default:
		return Storage{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Close releases the storage connection.
func (s Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// HealthChecks returns the named connectivity checks of the engine.
func (e *Engine) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if e.Storage.Ping != nil {
		checks["database"] = e.Storage.Ping
	}
	if e.Redis != nil {
		checks["redis"] = redis.NewPubSub(e.Redis).Ping
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
