package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "progress-hub:events", cfg.Redis.EventChannel)
	assert.Equal(t, 5, cfg.Engine.CASAttempts)
	assert.Equal(t, progress.DefaultRewards(), cfg.Engine.Rewards.Table())
	assert.Equal(t, "0 19 * * *", cfg.Scheduler.StreakReminder)
	assert.False(t, cfg.Tracing.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_ENV":                       "production",
		"APP_TIMEZONE":                  "UTC",
		"DB_DRIVER":                     "postgres",
		"DB_DSN":                        "postgres://localhost/progress",
		"REDIS_URL":                     "redis://localhost:6379/0",
		"ENGINE_REWARD_LESSON_COMPLETE": "150",
		"ENGINE_REWARD_STREAK_BONUS":    "0",
		"SCHEDULER_STREAK_REMINDER":     "@every 1h",
		"LOG_LEVEL":                     "debug",
		"LOG_FORMAT":                    "console",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, int64(150), cfg.Engine.Rewards.Table().LessonComplete)
	assert.Equal(t, int64(0), cfg.Engine.Rewards.Table().StreakBonus)
	assert.Equal(t, "@every 1h", cfg.Scheduler.StreakReminder)

	opts := cfg.LoggerOptions()
	assert.Equal(t, logger.LevelDebug, opts.Level)
	assert.Equal(t, "console", opts.Format)
	assert.False(t, opts.Development)
}

func TestLoadFrom_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown env", map[string]string{"APP_ENV": "qa"}, "APP_ENV"},
		{"bad timezone", map[string]string{"APP_TIMEZONE": "Not/AZone"}, "APP_TIMEZONE"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"memory in production", map[string]string{"APP_ENV": "production", "DB_DRIVER": "memory"}, "not allowed in production"},
		{"negative reward", map[string]string{"ENGINE_REWARD_QUIZ_COMPLETE": "-1"}, "ENGINE_REWARD_"},
		{"zero cas attempts", map[string]string{"ENGINE_CAS_ATTEMPTS": "0"}, "ENGINE_CAS_ATTEMPTS"},
		{"sample ratio", map[string]string{"TRACING_SAMPLE_RATIO": "2"}, "TRACING_SAMPLE_RATIO"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"ENGINE_CAS_ATTEMPTS": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
