package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/internal/database"
	"github.com/example/lingotrack/internal/mastery"
	"github.com/example/lingotrack/internal/notification"
	"github.com/example/lingotrack/internal/scheduler"
	"github.com/example/lingotrack/pkg/models"
)

// Config is the process configuration, read from the environment
type Config struct {
	Database      database.Config
	TelegramToken string
	RabbitMQ      RabbitMQConfig
	Redis         RedisConfig
	// Location that day boundaries of streaks are drawn in
	StreakLocation *time.Location
	Scheduler      scheduler.Config
	Notification   notification.Config
	// Path to a YAML, Excel or CSV achievement catalog
	CatalogPath string
	Policies    mastery.Policies
	LogLevel    slog.Level
}

// RabbitMQConfig configures the AMQP notification sink; empty URI disables it
type RabbitMQConfig struct {
	URI      string
	Exchange string
}

// RedisConfig configures the job locker; empty address disables it
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using environment variables")
	}

	loc, err := time.LoadLocation(getEnv("STREAK_TIMEZONE", "UTC"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid STREAK_TIMEZONE")
	}

	sched := scheduler.DefaultConfig()
	sched.StartHour = getEnvAsHour("NOTIFICATION_START_HOUR", sched.StartHour)
	sched.EndHour = getEnvAsHour("NOTIFICATION_END_HOUR", sched.EndHour)
	sched.BatchSize = getEnvAsInt("REMINDER_BATCH_SIZE", sched.BatchSize)
	sched.DigestTime = getEnv("DIGEST_TIME", sched.DigestTime)
	sched.Location = loc

	notify := notification.DefaultConfig()
	notify.QueueSize = getEnvAsInt("NOTIFICATION_QUEUE_SIZE", notify.QueueSize)
	notify.Workers = getEnvAsInt("NOTIFICATION_WORKERS", notify.Workers)

	return &Config{
		Database: database.Config{
			Type: getEnv("DB_TYPE", "sqlite"),
			Path: getEnv("DB_PATH", ""),
			URL:  getEnv("DATABASE_URL", ""),
		},
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		RabbitMQ: RabbitMQConfig{
			URI:      getEnv("RABBITMQ_URI", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", notification.DefaultExchange),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		StreakLocation: loc,
		Scheduler:      sched,
		Notification:   notify,
		CatalogPath:    getEnv("ACHIEVEMENT_CATALOG", "catalog.yaml"),
		Policies:       loadPolicies(),
		LogLevel:       parseLevel(getEnv("LOG_LEVEL", "info")),
	}, nil
}

// loadPolicies overrides the default mastery thresholds with VOCAB_* and GRAMMAR_* variables
func loadPolicies() mastery.Policies {
	policies := mastery.DefaultPolicies()
	prefixes := map[models.ItemKind]string{
		models.ItemKindVocabulary: "VOCAB_",
		models.ItemKindGrammar:    "GRAMMAR_",
	}

	for kind, prefix := range prefixes {
		p := policies[kind]
		p.PromoteAccuracy = getEnvAsRatio(prefix+"PROMOTE_ACCURACY", p.PromoteAccuracy)
		p.DemoteAccuracy = getEnvAsRatio(prefix+"DEMOTE_ACCURACY", p.DemoteAccuracy)
		if n := getEnvAsInt(prefix+"MIN_ATTEMPTS", p.MinAttempts); n > 0 {
			p.MinAttempts = n
		}
		policies[kind] = p
	}
	return policies
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		n, err := strconv.Atoi(value)
		if err != nil {
			slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
			return defaultValue
		}
		return n
	}
	return defaultValue
}

func getEnvAsHour(key string, defaultValue int) int {
	h := getEnvAsInt(key, defaultValue)
	if h < 0 || h > 23 {
		slog.Warn("hour out of range, using default", "key", key, "value", h)
		return defaultValue
	}
	return h
}

func getEnvAsRatio(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			slog.Warn("invalid ratio in environment, using default", "key", key, "value", value)
			return defaultValue
		}
		return f
	}
	return defaultValue
}
