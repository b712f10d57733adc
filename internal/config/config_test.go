package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingotrack/internal/mastery"
	"github.com/example/lingotrack/internal/scheduler"
	"github.com/example/lingotrack/pkg/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "UTC", cfg.StreakLocation.String())
	assert.Equal(t, scheduler.DefaultNotificationStartHour, cfg.Scheduler.StartHour)
	assert.Equal(t, mastery.DefaultPolicies(), cfg.Policies)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.RabbitMQ.URI)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/lingotrack")
	t.Setenv("STREAK_TIMEZONE", "Europe/Berlin")
	t.Setenv("NOTIFICATION_START_HOUR", "6")
	t.Setenv("NOTIFICATION_END_HOUR", "31")
	t.Setenv("REMINDER_BATCH_SIZE", "250")
	t.Setenv("GRAMMAR_MIN_ATTEMPTS", "6")
	t.Setenv("VOCAB_PROMOTE_ACCURACY", "0.95")
	t.Setenv("VOCAB_DEMOTE_ACCURACY", "1.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/lingotrack", cfg.Database.URL)
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Location.String())
	assert.Equal(t, 6, cfg.Scheduler.StartHour)
	assert.Equal(t, scheduler.DefaultNotificationEndHour, cfg.Scheduler.EndHour)
	assert.Equal(t, 250, cfg.Scheduler.BatchSize)
	assert.Equal(t, 6, cfg.Policies[models.ItemKindGrammar].MinAttempts)
	assert.Equal(t, 0.95, cfg.Policies[models.ItemKindVocabulary].PromoteAccuracy)
	assert.Equal(t, 0.60, cfg.Policies[models.ItemKindVocabulary].DemoteAccuracy)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_BadTimezone(t *testing.T) {
	t.Setenv("STREAK_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)
}
