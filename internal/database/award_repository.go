package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// AwardRepository handles achievement and badge awards. Both tables carry
// UNIQUE(user_id, definition_id); inserts rely on it instead of a prior read.
type AwardRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewAwardRepository creates a new repository instance
func NewAwardRepository(db *sqlx.DB) *AwardRepository {
	return &AwardRepository{db: db, retry: DefaultRetryPolicy()}
}

// InsertAchievementIfAbsent stores the award and reports whether this call created it.
// false with a nil error means the user already had the achievement.
func (r *AwardRepository) InsertAchievementIfAbsent(ctx context.Context, award *models.AchievementAward) (bool, error) {
	id, err := r.insertIfAbsent(ctx, "achievement_awards", award.UserID, award.DefinitionID, &award.UnlockedAt, award.ProgressSnapshot)
	if err != nil || id == 0 {
		return false, err
	}
	award.ID = id
	return true, nil
}

// InsertBadgeIfAbsent is the badge counterpart of InsertAchievementIfAbsent
func (r *AwardRepository) InsertBadgeIfAbsent(ctx context.Context, award *models.BadgeAward) (bool, error) {
	id, err := r.insertIfAbsent(ctx, "badge_awards", award.UserID, award.DefinitionID, &award.UnlockedAt, award.ProgressSnapshot)
	if err != nil || id == 0 {
		return false, err
	}
	award.ID = id
	return true, nil
}

// ListAchievementIDs returns the definition ids already awarded to a user
func (r *AwardRepository) ListAchievementIDs(ctx context.Context, userID int64) ([]string, error) {
	return r.listDefinitionIDs(ctx, "achievement_awards", userID)
}

// ListBadgeIDs returns the badge definition ids already awarded to a user
func (r *AwardRepository) ListBadgeIDs(ctx context.Context, userID int64) ([]string, error) {
	return r.listDefinitionIDs(ctx, "badge_awards", userID)
}

// ListAchievements returns all achievement awards of a user, oldest first
func (r *AwardRepository) ListAchievements(ctx context.Context, userID int64) ([]models.AchievementAward, error) {
	query := r.db.Rebind(`SELECT id, user_id, definition_id, unlocked_at, progress_snapshot
		FROM achievement_awards WHERE user_id = ? ORDER BY unlocked_at, id`)

	awards := []models.AchievementAward{}
	err := r.retry.Do(ctx, "list achievement awards", func() error {
		awards = awards[:0]
		return r.db.SelectContext(ctx, &awards, query, userID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list achievement awards")
	}
	return awards, nil
}

func (r *AwardRepository) insertIfAbsent(ctx context.Context, table string, userID int64, definitionID string, unlockedAt *time.Time, snapshot string) (int64, error) {
	if unlockedAt.IsZero() {
		*unlockedAt = time.Now()
	}
	query := r.db.Rebind(`INSERT INTO ` + table + ` (user_id, definition_id, unlocked_at, progress_snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, definition_id) DO NOTHING
		RETURNING id`)

	var id int64
	err := r.retry.Do(ctx, "insert "+table, func() error {
		return r.db.QueryRowxContext(ctx, query, userID, definitionID, unlockedAt.UTC(), snapshot).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert into %s", table)
	}
	return id, nil
}

func (r *AwardRepository) listDefinitionIDs(ctx context.Context, table string, userID int64) ([]string, error) {
	query := r.db.Rebind(`SELECT definition_id FROM ` + table + ` WHERE user_id = ?`)

	ids := []string{}
	err := r.retry.Do(ctx, "list "+table, func() error {
		ids = ids[:0]
		return r.db.SelectContext(ctx, &ids, query, userID)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", table)
	}
	return ids, nil
}
