// Package main - точка входа фонового процесса движка прогресса.
//
// Worker отвечает за:
// - Доставку уведомлений о достижениях, уровнях и сериях
// - Ежедневное напоминание тем, чья серия прервётся сегодня
// - Служебные HTTP endpoints (live, ready, jobs, метрики шины)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlearn/progress-hub/config"
	"github.com/sqlearn/progress-hub/internal/app"
	"github.com/sqlearn/progress-hub/internal/infrastructure/scheduler"
	"github.com/sqlearn/progress-hub/internal/infrastructure/scheduler/jobs"
	"github.com/sqlearn/progress-hub/internal/infrastructure/telemetry"
	httpserver "github.com/sqlearn/progress-hub/internal/interface/http"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()
	log = log.With(logger.String("service", cfg.App.Name))

	log.Info("starting progress worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("storage", cfg.Database.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ТРАССИРОВКА
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Init(ctx, log, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Tracing.Headers),
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ДВИЖОК (хранилище, блокировки, шина событий, уведомления)
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := app.New(ctx, cfg, log, app.Options{QuietHours: true})
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: engine.Location,
	})
	if cfg.Scheduler.Enabled {
		schedule, err := scheduler.ParseSchedule(cfg.Scheduler.StreakReminder)
		if err != nil {
			_ = engine.Close()
			return fmt.Errorf("invalid streak reminder schedule: %w", err)
		}
		job := jobs.NewStreakAtRiskJob(
			engine.Storage.Stats, engine.Bus, engine.Clock, engine.Location, log,
			jobs.StreakAtRiskConfig{
				Concurrency: cfg.Scheduler.ReminderConcurrency,
				Timeout:     cfg.Scheduler.JobTimeout,
			},
		)
		if err := sched.Register(job, schedule); err != nil {
			_ = engine.Close()
			return fmt.Errorf("failed to register job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			_ = engine.Close()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. СЛУЖЕБНЫЙ HTTP
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpserver.Server
	if cfg.HTTP.Enabled {
		health := httpserver.NewHealthChecker(cfg.App.Version)
		for name, check := range engine.HealthChecks() {
			health.AddCheck(name, check)
		}
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Addr = cfg.HTTP.Addr
		server = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			Health:  health,
			Jobs:    sched,
			Metrics: engine.Bus.Metrics(),
			Logger:  log,
		})
		if err := server.Start(); err != nil {
			_ = sched.Stop()
			_ = engine.Close()
			return fmt.Errorf("failed to start http server: %w", err)
		}
	}

	log.Info("progress worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	// 1. Перестаём принимать HTTP запросы
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown", logger.Err(err))
		}
	}

	// 2. Дожидаемся текущих задач
	if cfg.Scheduler.Enabled {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop", logger.Err(err))
		}
	}

	// 3. Шина дожидается обработчиков, затем закрываются Redis и хранилище
	if err := engine.Close(); err != nil {
		log.Warn("engine close", logger.Err(err))
	}

	// 4. Сбрасываем оставшиеся спаны
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", logger.Err(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}
