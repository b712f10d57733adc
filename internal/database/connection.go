package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Config describes which database to open
type Config struct {
	// Type is "sqlite" or "postgres"
	Type string
	// Path is the sqlite file path
	Path string
	// URL is the postgres connection string
	URL string
}

// Connect opens the database described by cfg and makes sure the schema exists
func Connect(cfg Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch strings.ToLower(cfg.Type) {
	case "", "sqlite", "sqlite3":
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "lingotrack.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
		db, err = sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to sqlite")
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	case "postgres", "postgresql":
		db, err = sqlx.Connect("postgres", cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to postgres")
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	default:
		return nil, errors.Errorf("unknown db type %q: only 'sqlite' and 'postgres' are supported", cfg.Type)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			chat_id BIGINT NOT NULL DEFAULT 0,
			username TEXT NOT NULL DEFAULT '',
			notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			notification_hour INTEGER NOT NULL DEFAULT 9,
			reviews_per_day INTEGER NOT NULL DEFAULT 20
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			kind TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id BIGINT PRIMARY KEY,
			course_id BIGINT NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT '',
			published BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mastery_records (
			id %s,
			user_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			item_kind TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			mastery_level INTEGER NOT NULL DEFAULT 0 CHECK (mastery_level BETWEEN 0 AND 5),
			correct_attempts INTEGER NOT NULL DEFAULT 0,
			total_attempts INTEGER NOT NULL DEFAULT 0,
			attempts_at_level INTEGER NOT NULL DEFAULT 0,
			last_practiced_at TIMESTAMP NOT NULL,
			next_review_at TIMESTAMP NOT NULL,
			review_interval_days INTEGER NOT NULL DEFAULT 1 CHECK (review_interval_days BETWEEN 1 AND 30),
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, item_id, item_kind)
		)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_mastery_records_due
			ON mastery_records (user_id, item_kind, next_review_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS completion_events (
			id %s,
			user_id BIGINT NOT NULL,
			lesson_id BIGINT NOT NULL,
			score INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
			time_spent_seconds BIGINT NOT NULL DEFAULT 0,
			completed_at TIMESTAMP NOT NULL
		)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_completion_events_user
			ON completion_events (user_id, completed_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS achievement_awards (
			id %s,
			user_id BIGINT NOT NULL,
			definition_id TEXT NOT NULL,
			unlocked_at TIMESTAMP NOT NULL,
			progress_snapshot TEXT NOT NULL DEFAULT '',
			UNIQUE(user_id, definition_id)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS badge_awards (
			id %s,
			user_id BIGINT NOT NULL,
			definition_id TEXT NOT NULL,
			unlocked_at TIMESTAMP NOT NULL,
			progress_snapshot TEXT NOT NULL DEFAULT '',
			UNIQUE(user_id, definition_id)
		)`, pk),
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
	}
	return nil
}
