package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

const userColumns = `id, chat_id, username, notification_enabled, notification_hour, reviews_per_day`

// UserRepository handles database operations for users
type UserRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, retry: DefaultRetryPolicy()}
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	var user models.User
	err := r.retry.Do(ctx, "get user", func() error {
		return r.db.GetContext(ctx, &user, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "user %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by ID")
	}
	return &user, nil
}

// Upsert creates a user or updates its notification settings
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			username = EXCLUDED.username,
			notification_enabled = EXCLUDED.notification_enabled,
			notification_hour = EXCLUDED.notification_hour,
			reviews_per_day = EXCLUDED.reviews_per_day`)

	err := r.retry.Do(ctx, "upsert user", func() error {
		_, err := r.db.ExecContext(ctx, query,
			user.ID,
			user.ChatID,
			user.Username,
			user.NotificationEnabled,
			user.NotificationHour,
			user.ReviewsPerDay,
		)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to upsert user")
	}
	return nil
}

// GetUsersForNotification returns one page of users with notifications enabled
// for the given hour, ordered by id and starting after afterID
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int, afterID int64, limit int) ([]models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users
		WHERE notification_enabled = TRUE AND notification_hour = ? AND id > ?
		ORDER BY id
		LIMIT ?`)
	return r.selectUsers(ctx, query, hour, afterID, limit)
}

// ListPage returns one page of users with notifications enabled, ordered by id
func (r *UserRepository) ListPage(ctx context.Context, afterID int64, limit int) ([]models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users
		WHERE notification_enabled = TRUE AND id > ?
		ORDER BY id
		LIMIT ?`)
	return r.selectUsers(ctx, query, afterID, limit)
}

func (r *UserRepository) selectUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	users := []models.User{}
	err := r.retry.Do(ctx, "list users", func() error {
		users = users[:0]
		return r.db.SelectContext(ctx, &users, query, args...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get users")
	}
	return users, nil
}
